package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/service"
)

func CreateInitCommand() *InitCommand {
	gc := &InitCommand{
		fs: flag.NewFlagSet("init", flag.ContinueOnError),
	}
	return gc
}

// InitCommand activates the router at boot.
type InitCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService
}

func (g *InitCommand) Name() string {
	return g.fs.Name()
}

func (g *InitCommand) Init(args []string, ctx *AppContext) error {
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

func (g *InitCommand) Run() error {
	log.Infof("Activating uplink policy routing...")

	report, err := g.svc.Activate(context.Background())
	if err != nil {
		return err
	}

	out := g.ctx.stdout()
	for _, segment := range report.Seeded {
		fmt.Fprintf(out, "%s: seeded default assignment\n", segment)
	}
	for _, r := range report.Segments {
		switch {
		case r.Error != "":
			fmt.Fprintf(out, "%s: %s, fail-closed (%s)\n", r.Segment, r.Target, r.Error)
		case r.Route == "":
			fmt.Fprintf(out, "%s: %s\n", r.Segment, r.Target)
		default:
			fmt.Fprintf(out, "%s: %s, %s\n", r.Segment, r.Target, r.Route)
		}
	}
	return nil
}
