package commands

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/routervm/uplinkctl/src/internal/api"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/service"
)

const defaultListenAddr = "127.0.0.1:9810"

func CreateServeCommand() *ServeCommand {
	gc := &ServeCommand{
		fs: flag.NewFlagSet("serve", flag.ContinueOnError),
	}

	gc.fs.StringVar(&gc.ListenAddr, "listen", defaultListenAddr, "Address the HTTP control API listens on")

	return gc
}

// ServeCommand runs the HTTP control API until SIGINT or SIGTERM.
type ServeCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService

	ListenAddr string
}

func (g *ServeCommand) Name() string {
	return g.fs.Name()
}

func (g *ServeCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx

	if err := g.fs.Parse(args); err != nil {
		return err
	}

	svc, err := newControlService(ctx)
	if err != nil {
		return err
	}
	g.svc = svc

	return nil
}

func (g *ServeCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(g.ListenAddr, api.NewRouter(g.svc, api.NewMetrics()))
	if err := server.Run(ctx); err != nil {
		return err
	}

	log.Infof("[API] Server stopped")
	return nil
}
