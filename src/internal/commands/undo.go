package commands

import (
	"flag"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/service"
)

func CreateUndoCommand() *UndoCommand {
	gc := &UndoCommand{
		fs: flag.NewFlagSet("undo-routing", flag.ContinueOnError),
	}
	return gc
}

type UndoCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService
}

func (g *UndoCommand) Name() string {
	return g.fs.Name()
}

func (g *UndoCommand) Init(args []string, ctx *AppContext) error {
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

func (g *UndoCommand) Run() error {
	log.Infof("Removing ip rules, segment routes and classifier rules...")

	if err := g.svc.Undo(); err != nil {
		log.Errorf("Failed to undo routing configuration: %v", err)
		return err
	}

	log.Infof("Undo routing completed successfully")
	return nil
}
