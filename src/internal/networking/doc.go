// Package networking manages the kernel side of segment policy routing.
//
// Each segment owns a fixed routing table (pentest=100, office=101,
// browse=102, dev=103). Packets sourced from a segment subnet are marked
// with the table id and a policy rule "fwmark <id> lookup <id>" sends them
// to that table. The table holds at most one default route:
//
//   - blocked: the table is empty and marked traffic has no route
//   - direct: default via the main table gateway (or on-link via the WAN interface)
//   - VPN: default dev <tunnel interface>
//
// RoutingManager implements this on top of a RoutingBackend. NetlinkBackend
// talks to the kernel; tests use the in-memory fake from the mocks package.
//
// With the iptables classifier backend, IPTableRules installs the packet
// marks from templated rules:
//
//	rules, err := networking.NewIPTableRules(cfg)
//	if err != nil {
//	    return err
//	}
//	err = rules.AddIfNotExists()
package networking
