package service

import (
	"context"
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/networking"
	"github.com/routervm/uplinkctl/src/internal/tunnel"
)

// SegmentState is the reported state of a segment.
type SegmentState string

const (
	StateBlocked      SegmentState = "blocked"
	StateDirect       SegmentState = "direct"
	StateConnected    SegmentState = "connected"
	StateDisconnected SegmentState = "disconnected"
	// StateUnknown is reported when the segment has no readable record.
	StateUnknown SegmentState = "unknown"
)

// StatusOptions controls how much Status probes.
type StatusOptions struct {
	// Probe inspects connected WireGuard devices and queries the tunnel's
	// DNS server through it.
	Probe bool
}

// SegmentStatus is the status of one segment.
type SegmentStatus struct {
	Segment   models.Segment `json:"segment"`
	Table     int            `json:"table"`
	Target    string         `json:"target,omitempty"`
	State     SegmentState   `json:"state"`
	Interface string         `json:"interface,omitempty"`
	Routes    []string       `json:"routes"`
	Error     string         `json:"error,omitempty"`

	WireGuard  *tunnel.WireGuardStatus `json:"wireguard,omitempty"`
	DNSLatency string                  `json:"dns_latency,omitempty"`
	DNSError   string                  `json:"dns_error,omitempty"`
}

// Describe renders the state the way the status command prints it.
func (s SegmentStatus) Describe() string {
	switch s.State {
	case StateBlocked:
		return "blocked"
	case StateDirect:
		return "direct"
	case StateConnected:
		return fmt.Sprintf("vpn %s (connected via %s)", s.Target, s.Interface)
	case StateDisconnected:
		return fmt.Sprintf("vpn %s (disconnected)", s.Target)
	default:
		return fmt.Sprintf("unknown (%s)", s.Error)
	}
}

// Status reports every segment in table id order. It never fails: problems
// are reported inside the affected segment's status. No locks are taken.
func (s *ControlService) Status(ctx context.Context, opts StatusOptions) []SegmentStatus {
	out := make([]SegmentStatus, 0, len(models.Segments()))
	for _, segment := range models.Segments() {
		out = append(out, s.SegmentStatus(ctx, segment, opts))
	}
	return out
}

// SegmentStatus reports a single segment.
func (s *ControlService) SegmentStatus(ctx context.Context, segment models.Segment, opts StatusOptions) SegmentStatus {
	status := SegmentStatus{
		Segment: segment,
		Table:   segment.TableID(),
		Routes:  []string{},
	}

	routes, err := s.routing.Routes(segment)
	if err != nil {
		log.Debugf("[%s] %v", segment, err)
	} else {
		for _, r := range routes {
			status.Routes = append(status.Routes, r.String())
		}
	}

	target, err := s.store.Get(segment)
	if err != nil {
		status.State = StateUnknown
		status.Error = err.Error()
		return status
	}
	status.Target = target.String()

	switch target.Kind() {
	case models.TargetBlocked:
		status.State = StateBlocked
	case models.TargetDirect:
		status.State = StateDirect
	case models.TargetVPN:
		s.vpnStatus(ctx, &status, target.VPNName(), routes, opts)
	}
	return status
}

// vpnStatus reports a VPN as connected when its own interface exists. The
// generic tunnel interface only counts when the segment table routes
// through it, since it may belong to an unrelated tunnel.
func (s *ControlService) vpnStatus(ctx context.Context, status *SegmentStatus, name string, routes []networking.Route, opts StatusOptions) {
	iface, ok, err := s.tunnels.Interface(name)
	if err != nil {
		status.State = StateDisconnected
		status.Error = err.Error()
		return
	}
	if ok && iface == networking.GenericTunnelInterface && name != networking.GenericTunnelInterface {
		ok = routesVia(routes, iface)
	}
	if !ok {
		status.State = StateDisconnected
		return
	}

	status.State = StateConnected
	status.Interface = iface
	if !opts.Probe {
		return
	}

	status.WireGuard = s.tunnels.Inspect(iface)

	d, err := s.tunnels.Lookup(name)
	if err != nil || len(d.DNS) == 0 {
		return
	}
	rtt, err := tunnel.ProbeDNS(ctx, d.DNS[0], tunnel.DefaultProbeName)
	if err != nil {
		status.DNSError = err.Error()
		return
	}
	status.DNSLatency = rtt.String()
}

func routesVia(routes []networking.Route, iface string) bool {
	for _, r := range routes {
		if r.IsDefault() && r.Interface == iface {
			return true
		}
	}
	return false
}
