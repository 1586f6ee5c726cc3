package networking

import (
	"fmt"
	"net"
)

// Route is a route in one of the segment tables.
type Route struct {
	Table int
	// Destination is "default" or a CIDR.
	Destination string
	Interface   string
	// Gateway is nil for gateway-less (on-link) routes.
	Gateway net.IP
}

// IsDefault reports whether the route is a default route.
func (r Route) IsDefault() bool {
	return r.Destination == "" || r.Destination == "default" || r.Destination == "0.0.0.0/0"
}

func (r Route) String() string {
	dst := r.Destination
	if r.IsDefault() {
		dst = "default"
	}
	if r.Gateway != nil {
		return fmt.Sprintf("%s via %s dev %s", dst, r.Gateway, r.Interface)
	}
	return fmt.Sprintf("%s dev %s", dst, r.Interface)
}

// Egress is a resolved uplink: an interface and an optional next hop.
type Egress struct {
	Interface string
	Gateway   net.IP
}

func (e *Egress) String() string {
	if e.Gateway != nil {
		return fmt.Sprintf("via %s dev %s", e.Gateway, e.Interface)
	}
	return "dev " + e.Interface
}

// Rule is a policy rule "fwmark <Mark> lookup <Table>", or
// "fwmark <Mark> unreachable" when Unreachable is set. Table is 0 then.
type Rule struct {
	Mark        uint32
	Table       int
	Priority    int
	Unreachable bool
}

func (r Rule) String() string {
	if r.Unreachable {
		return fmt.Sprintf("rule %d: fwmark %d unreachable", r.Priority, r.Mark)
	}
	return fmt.Sprintf("rule %d: fwmark %d lookup %d", r.Priority, r.Mark, r.Table)
}

// InterfaceProber answers interface presence questions.
type InterfaceProber interface {
	// InterfaceExists reports whether a link with the given name exists.
	InterfaceExists(name string) (bool, error)
	// ListInterfaces returns the names of all links.
	ListInterfaces() ([]string, error)
}

// RoutingBackend is the kernel routing state the router manipulates.
// NetlinkBackend is the real implementation.
type RoutingBackend interface {
	InterfaceProber

	// FlushTable removes every route from the table.
	FlushTable(table int) error
	// ListRoutes returns the routes of the table.
	ListRoutes(table int) ([]Route, error)
	// AddDefaultRoute installs "default [via gateway] dev iface" into the table.
	AddDefaultRoute(table int, iface string, gateway net.IP) error
	// DefaultEgress returns the main table default route, or nil when there is none.
	DefaultEgress() (*Egress, error)

	// EnsureRule installs the rule unless it exists. It reports whether it was added.
	EnsureRule(rule Rule) (bool, error)
	// DeleteRule removes the rule if it exists. It reports whether it was removed.
	DeleteRule(rule Rule) (bool, error)
	RuleExists(rule Rule) (bool, error)
}
