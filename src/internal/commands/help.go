package commands

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
)

var commandSummaries = []struct {
	usage, description string
}{
	{"assign <segment> <target>", "Route a segment via blocked, direct or a VPN name"},
	{"status [-probe] [-json]", "Show the target and state of every segment"},
	{"list", "List the known VPN tunnels"},
	{"connect <vpn>", "Bring a VPN tunnel up"},
	{"disconnect <vpn>", "Take a VPN tunnel down"},
	{"init", "Seed defaults, install rules and firewall, restore assignments"},
	{"firewall <render|apply|check>", "Print, apply or verify the nftables ruleset"},
	{"self-check", "Verify rules, segment tables and firewall against the configuration"},
	{"undo-routing", "Remove policy rules, segment routes and classifier rules"},
	{"serve [-listen addr]", "Run the HTTP control API"},
	{"help", "Show this help"},
}

// Usage writes the command overview.
func Usage(w io.Writer, program string) {
	fmt.Fprintf(w, "Usage: %s [options] <command> [args]\n\n", program)
	fmt.Fprintf(w, "Segments: pentest (table 100), office (101), browse (102), dev (103)\n")
	fmt.Fprintf(w, "Targets:  blocked, direct, <vpn-name>\n\n")
	fmt.Fprintf(w, "Commands:\n")

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for _, c := range commandSummaries {
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.description)
	}
	tw.Flush()
}

func CreateHelpCommand() *HelpCommand {
	gc := &HelpCommand{
		fs: flag.NewFlagSet("help", flag.ContinueOnError),
	}
	return gc
}

// HelpCommand prints the command overview. It does not need a configuration.
type HelpCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
}

func (g *HelpCommand) Name() string {
	return g.fs.Name()
}

func (g *HelpCommand) Init(args []string, ctx *AppContext) error {
	g.ctx = ctx
	return g.fs.Parse(args)
}

func (g *HelpCommand) Run() error {
	Usage(g.ctx.stdout(), "uplinkctl")
	return nil
}
