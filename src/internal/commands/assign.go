package commands

import (
	"flag"
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/service"
)

func CreateAssignCommand() *AssignCommand {
	gc := &AssignCommand{
		fs: flag.NewFlagSet("assign", flag.ContinueOnError),
	}
	return gc
}

type AssignCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService

	segment string
	target  string
}

func (g *AssignCommand) Name() string {
	return g.fs.Name()
}

func (g *AssignCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx

	if err := g.fs.Parse(args); err != nil {
		return err
	}
	if err := expectArgs(g.Name(), g.fs.Args(), "<segment> <blocked|direct|vpn-name>", 2); err != nil {
		return err
	}
	g.segment, g.target = g.fs.Arg(0), g.fs.Arg(1)

	svc, err := newControlService(ctx)
	if err != nil {
		return err
	}
	g.svc = svc

	return nil
}

func (g *AssignCommand) Run() error {
	result, err := g.svc.Assign(g.segment, g.target)
	if err != nil {
		return err
	}

	route := result.Route
	if route == "" {
		route = "no route (blocked)"
	}
	fmt.Fprintf(g.ctx.stdout(), "%s -> %s: table %d, %s\n", result.Segment, result.Target, result.Table, route)
	return nil
}
