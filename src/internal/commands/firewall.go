package commands

import (
	"context"
	"flag"
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/service"
)

const (
	firewallRender = "render"
	firewallApply  = "apply"
	firewallCheck  = "check"
)

func CreateFirewallCommand() *FirewallCommand {
	gc := &FirewallCommand{
		fs: flag.NewFlagSet("firewall", flag.ContinueOnError),
	}
	return gc
}

// FirewallCommand renders, applies or checks the nftables ruleset.
type FirewallCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService

	action string
}

func (g *FirewallCommand) Name() string {
	return g.fs.Name()
}

func (g *FirewallCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx

	if err := g.fs.Parse(args); err != nil {
		return err
	}
	if err := expectArgs(g.Name(), g.fs.Args(), "<render|apply|check>", 1); err != nil {
		return err
	}

	g.action = g.fs.Arg(0)
	switch g.action {
	case firewallRender:
		// stdout is the script itself
		log.SetForceStdErr(true)
	case firewallApply, firewallCheck:
	default:
		return fmt.Errorf("unknown firewall action %q (expected render, apply or check)", g.action)
	}

	svc, err := newControlService(ctx)
	if err != nil {
		return err
	}
	g.svc = svc

	return nil
}

func (g *FirewallCommand) Run() error {
	out := g.ctx.stdout()

	switch g.action {
	case firewallRender:
		script, err := g.svc.RenderFirewall()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, script)
		return err

	case firewallApply:
		if _, err := g.svc.ApplyFirewall(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(out, "Firewall ruleset applied")
		return nil

	default:
		result, err := g.svc.CheckFirewall()
		if err != nil {
			return err
		}
		for _, chain := range g.svc.FirewallChains() {
			state := "missing"
			if result.Chains[chain] {
				state = "loaded"
			}
			fmt.Fprintf(out, "chain %s: %s\n", chain, state)
		}
		if !result.OK() {
			return fmt.Errorf("table inet %s is not fully loaded", result.Table)
		}
		fmt.Fprintf(out, "table inet %s: loaded\n", result.Table)
		return nil
	}
}
