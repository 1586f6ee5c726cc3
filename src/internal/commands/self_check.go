package commands

import (
	"flag"
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/service"
)

func CreateSelfCheckCommand() *SelfCheckCommand {
	gc := &SelfCheckCommand{
		fs: flag.NewFlagSet("self-check", flag.ContinueOnError),
	}
	return gc
}

type SelfCheckCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService
}

func (g *SelfCheckCommand) Name() string {
	return g.fs.Name()
}

func (g *SelfCheckCommand) Init(args []string, ctx *AppContext) error {
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

func (g *SelfCheckCommand) Run() error {
	log.Infof("Running self-check...")

	report := g.svc.SelfCheck()
	out := g.ctx.stdout()
	for _, c := range report.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %-16s %s\n", mark, c.Name, c.Message)
	}

	if !report.OK() {
		log.Errorf("Self-check completed with failures")
		return fmt.Errorf("self-check failed")
	}

	log.Infof("Self-check completed successfully")
	return nil
}
