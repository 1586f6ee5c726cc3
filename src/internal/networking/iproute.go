package networking

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/routervm/uplinkctl/src/internal/log"
)

type IPRoute struct {
	*netlink.Route
}

func (r *IPRoute) String() string {
	to := "default"
	if r.Dst != nil && !isDefaultDst(r.Dst) {
		to = r.Dst.String()
	}

	via := ""
	if r.Gw != nil {
		via = " via " + r.Gw.String()
	}

	return fmt.Sprintf("table %d: %s%s dev %s (idx=%d)", r.Table, to, via, linkName(r.LinkIndex), r.LinkIndex)
}

func linkName(index int) string {
	if index <= 0 {
		return "<nil>"
	}
	link, err := netlink.LinkByIndex(index)
	if err != nil {
		return "<err: " + err.Error() + ">"
	}
	return link.Attrs().Name
}

func isDefaultDst(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0 && dst.IP.IsUnspecified()
}

// BuildDefaultRoute builds "default [via gateway] dev iface" for the table.
// A nil gateway yields an on-link route.
func BuildDefaultRoute(iface *Interface, gateway net.IP, table int) *IPRoute {
	ipr := netlink.Route{
		Table:     table,
		LinkIndex: iface.Attrs().Index,
		Family:    netlink.FAMILY_V4,
		Dst: &net.IPNet{
			IP:   net.IPv4zero,
			Mask: net.CIDRMask(0, 32),
		},
	}
	if gateway != nil {
		ipr.Gw = gateway
		ipr.Scope = netlink.SCOPE_UNIVERSE
	} else {
		ipr.Scope = netlink.SCOPE_LINK
	}
	return &IPRoute{&ipr}
}

func (ipr *IPRoute) Add() error {
	log.Debugf("Adding IP route [%v]", ipr)
	if err := netlink.RouteAdd(ipr.Route); err != nil {
		log.Warnf("Failed to add IP route [%v]: %v", ipr, err)
		return err
	}

	return nil
}

// ToRoute converts the kernel route to the backend-neutral form.
func (ipr *IPRoute) ToRoute() Route {
	dst := "default"
	if !isDefaultDst(ipr.Dst) {
		dst = ipr.Dst.String()
	}
	return Route{
		Table:       ipr.Table,
		Destination: dst,
		Interface:   linkName(ipr.LinkIndex),
		Gateway:     ipr.Gw,
	}
}

func DelIPRouteTable(table int) error {
	log.Debugf("Deleting IP route table [%d]", table)
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_ALL, &netlink.Route{Table: table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return err
	}

	for _, route := range routes {
		if err := netlink.RouteDel(&route); err != nil {
			return err
		}
	}

	return nil
}

func ListRoutesInTable(table int) ([]*IPRoute, error) {
	log.Debugf("Listing all routes in the routing table %d", table)
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_ALL, &netlink.Route{Table: table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		log.Warnf("Failed to list routes for table %d: %v", table, err)
		return nil, err
	}

	var ipRoutes []*IPRoute
	for _, route := range routes {
		copiedRoute := route
		ipRoutes = append(ipRoutes, &IPRoute{&copiedRoute})
	}

	return ipRoutes, nil
}
