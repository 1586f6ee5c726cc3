package commands

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/routervm/uplinkctl/src/internal/service"
)

func CreateListCommand() *ListCommand {
	gc := &ListCommand{
		fs: flag.NewFlagSet("list", flag.ContinueOnError),
	}
	return gc
}

type ListCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService
}

func (g *ListCommand) Name() string {
	return g.fs.Name()
}

func (g *ListCommand) Init(args []string, ctx *AppContext) error {
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

func (g *ListCommand) Run() error {
	tunnels := g.svc.List()
	if len(tunnels) == 0 {
		fmt.Fprintln(g.ctx.stdout(), "No tunnels configured")
		return nil
	}

	w := tabwriter.NewWriter(g.ctx.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tUNIT\tSOURCE\tSTATE")
	for _, t := range tunnels {
		state := "down"
		if t.Up {
			state = "up (" + t.Interface + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Kind, t.Unit, t.Source, state)
	}
	return w.Flush()
}

// CreateConnectCommand creates the "connect" command.
func CreateConnectCommand() *TunnelCommand {
	return &TunnelCommand{fs: flag.NewFlagSet("connect", flag.ContinueOnError), up: true}
}

// CreateDisconnectCommand creates the "disconnect" command.
func CreateDisconnectCommand() *TunnelCommand {
	return &TunnelCommand{fs: flag.NewFlagSet("disconnect", flag.ContinueOnError)}
}

// TunnelCommand brings a tunnel up or down.
type TunnelCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService

	up   bool
	name string
}

func (g *TunnelCommand) Name() string {
	return g.fs.Name()
}

func (g *TunnelCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx

	if err := g.fs.Parse(args); err != nil {
		return err
	}
	if err := expectArgs(g.Name(), g.fs.Args(), "<vpn-name>", 1); err != nil {
		return err
	}
	g.name = g.fs.Arg(0)

	svc, err := newControlService(ctx)
	if err != nil {
		return err
	}
	g.svc = svc

	return nil
}

func (g *TunnelCommand) Run() error {
	ctx := context.Background()
	if g.up {
		if err := g.svc.Connect(ctx, g.name); err != nil {
			return err
		}
		fmt.Fprintf(g.ctx.stdout(), "%s connected\n", g.name)
		return nil
	}

	if err := g.svc.Disconnect(ctx, g.name); err != nil {
		return err
	}
	fmt.Fprintf(g.ctx.stdout(), "%s disconnected\n", g.name)
	return nil
}
