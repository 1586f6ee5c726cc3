package networking

import (
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/routervm/uplinkctl/src/internal/log"
)

// NetlinkBackend manipulates the kernel routing state through netlink.
type NetlinkBackend struct{}

func NewNetlinkBackend() *NetlinkBackend {
	return &NetlinkBackend{}
}

func (b *NetlinkBackend) InterfaceExists(name string) (bool, error) {
	if _, err := GetInterface(name); err != nil {
		if isLinkNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *NetlinkBackend) ListInterfaces() ([]string, error) {
	interfaces, err := GetInterfaceList()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(interfaces))
	for _, iface := range interfaces {
		names = append(names, iface.Attrs().Name)
	}
	return names, nil
}

func (b *NetlinkBackend) FlushTable(table int) error {
	return DelIPRouteTable(table)
}

func (b *NetlinkBackend) ListRoutes(table int) ([]Route, error) {
	ipRoutes, err := ListRoutesInTable(table)
	if err != nil {
		return nil, err
	}
	routes := make([]Route, 0, len(ipRoutes))
	for _, r := range ipRoutes {
		routes = append(routes, r.ToRoute())
	}
	return routes, nil
}

func (b *NetlinkBackend) AddDefaultRoute(table int, iface string, gateway net.IP) error {
	link, err := GetInterface(iface)
	if err != nil {
		return err
	}
	return BuildDefaultRoute(link, gateway, table).Add()
}

// DefaultEgress returns the main table default route with the lowest metric.
func (b *NetlinkBackend) DefaultEgress() (*Egress, error) {
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, err
	}

	var best *netlink.Route
	for i := range routes {
		route := &routes[i]
		if !isDefaultDst(route.Dst) || route.LinkIndex <= 0 {
			continue
		}
		if best == nil || route.Priority < best.Priority {
			best = route
		}
	}
	if best == nil {
		log.Debugf("No default route in the main table")
		return nil, nil
	}

	link, err := netlink.LinkByIndex(best.LinkIndex)
	if err != nil {
		return nil, err
	}
	return &Egress{Interface: link.Attrs().Name, Gateway: best.Gw}, nil
}

func (b *NetlinkBackend) EnsureRule(rule Rule) (bool, error) {
	return BuildRule(rule).AddIfNotExists()
}

func (b *NetlinkBackend) DeleteRule(rule Rule) (bool, error) {
	return BuildRule(rule).DelIfExists()
}

func (b *NetlinkBackend) RuleExists(rule Rule) (bool, error) {
	return BuildRule(rule).IsExists()
}
