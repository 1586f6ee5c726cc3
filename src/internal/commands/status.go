package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/routervm/uplinkctl/src/internal/service"
)

func CreateStatusCommand() *StatusCommand {
	gc := &StatusCommand{
		fs: flag.NewFlagSet("status", flag.ContinueOnError),
	}

	gc.fs.BoolVar(&gc.Probe, "probe", false, "Inspect connected WireGuard tunnels and query their DNS server")
	gc.fs.BoolVar(&gc.JSON, "json", false, "Print status as JSON")

	return gc
}

type StatusCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	svc *service.ControlService

	Probe bool
	JSON  bool
}

func (g *StatusCommand) Name() string {
	return g.fs.Name()
}

func (g *StatusCommand) Init(args []string, ctx *AppContext) error {
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

// Run prints the status of every segment. Per-segment problems are shown
// in the output and never fail the command.
func (g *StatusCommand) Run() error {
	statuses := g.svc.Status(context.Background(), service.StatusOptions{Probe: g.Probe})

	if g.JSON {
		enc := json.NewEncoder(g.ctx.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	w := tabwriter.NewWriter(g.ctx.stdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT\tTABLE\tSTATE\tROUTES")
	for _, s := range statuses {
		routes := "-"
		if len(s.Routes) > 0 {
			routes = strings.Join(s.Routes, "; ")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Segment, s.Table, s.Describe(), routes)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if g.Probe {
		for _, s := range statuses {
			g.printProbe(s)
		}
	}
	return nil
}

func (g *StatusCommand) printProbe(s service.SegmentStatus) {
	out := g.ctx.stdout()
	if s.State != service.StateConnected {
		return
	}

	fmt.Fprintf(out, "\n[%s] %s\n", s.Segment, s.Interface)
	if wg := s.WireGuard; wg != nil {
		fmt.Fprintf(out, "  wireguard: listen port %d, %d peer(s)\n", wg.ListenPort, len(wg.Peers))
		for _, p := range wg.Peers {
			handshake := "never"
			if !p.LatestHandshake.IsZero() {
				handshake = p.LatestHandshake.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "  peer %s endpoint %s handshake %s rx %d tx %d\n",
				p.PublicKey, p.Endpoint, handshake, p.TransferRx, p.TransferTx)
		}
	}
	switch {
	case s.DNSLatency != "":
		fmt.Fprintf(out, "  dns: ok (%s)\n", s.DNSLatency)
	case s.DNSError != "":
		fmt.Fprintf(out, "  dns: %s\n", s.DNSError)
	}
}
