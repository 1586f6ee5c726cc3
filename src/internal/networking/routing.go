package networking

import (
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
)

// GenericTunnelInterface is the last-resort interface tried for a VPN target.
const GenericTunnelInterface = "tun0"

// KillRuleOffset separates a segment's unreachable rule from its lookup rule.
const KillRuleOffset = 1000

// RoutingManager owns the per-segment routing tables and the policy rules
// selecting them.
//
// Every segment table holds at most one route, a default route through the
// egress of the segment's target. A lookup that finds no route falls through
// to the next rule, so each segment also has a "fwmark N unreachable" rule
// between its lookup rule and the main table. An empty table is therefore the
// kill switch: marked traffic is rejected instead of leaking through main.
type RoutingManager struct {
	backend          RoutingBackend
	wanInterface     string
	rulePriorityBase int
}

func NewRoutingManager(backend RoutingBackend, wanInterface string, rulePriorityBase int) *RoutingManager {
	return &RoutingManager{
		backend:          backend,
		wanInterface:     wanInterface,
		rulePriorityBase: rulePriorityBase,
	}
}

// VPNInterfaceCandidates returns the interface names tried, in order, for a VPN.
func VPNInterfaceCandidates(name string) []string {
	return []string{name, "tun-" + name, GenericTunnelInterface}
}

// Resolve returns the egress a target would be routed through. Blocked
// resolves to nil. Nothing is changed in the kernel.
func (m *RoutingManager) Resolve(target models.Target) (*Egress, error) {
	switch target.Kind() {
	case models.TargetBlocked:
		return nil, nil
	case models.TargetDirect:
		return m.resolveDirect()
	case models.TargetVPN:
		return m.resolveVPN(target.VPNName())
	default:
		return nil, errors.NewInternalError(fmt.Sprintf("unsupported target %q", target), nil)
	}
}

func (m *RoutingManager) resolveDirect() (*Egress, error) {
	egress, err := m.backend.DefaultEgress()
	if err != nil {
		return nil, errors.NewDependencyError("failed to read the main routing table", err)
	}
	if egress != nil {
		return egress, nil
	}

	if m.wanInterface != "" {
		exists, err := m.backend.InterfaceExists(m.wanInterface)
		if err != nil {
			return nil, errors.NewDependencyError(fmt.Sprintf("failed to probe interface %s", m.wanInterface), err)
		}
		if exists {
			log.Warnf("No default gateway known, falling back to gateway-less route via %s", m.wanInterface)
			return &Egress{Interface: m.wanInterface}, nil
		}
	}

	return nil, errors.NewNotFoundError("cannot determine WAN egress: no default route and no WAN interface", nil)
}

func (m *RoutingManager) resolveVPN(name string) (*Egress, error) {
	candidates := VPNInterfaceCandidates(name)
	for _, iface := range candidates {
		exists, err := m.backend.InterfaceExists(iface)
		if err != nil {
			return nil, errors.NewDependencyError(fmt.Sprintf("failed to probe interface %s", iface), err)
		}
		if exists {
			if iface == GenericTunnelInterface && name != GenericTunnelInterface {
				log.Warnf("VPN %s has no interface of its own, using generic %s", name, iface)
			}
			return &Egress{Interface: iface}, nil
		}
	}
	return nil, errors.NewNotFoundError(
		fmt.Sprintf("VPN %s is not up: none of the interfaces %v exist", name, candidates), nil)
}

// Reconcile makes the segment's table carry exactly the route implied by
// the target.
//
// The egress is resolved before the table is touched, so a ResourceNotFound
// leaves the table unchanged. The table is then flushed and the new route
// added; if adding fails the previous routes are restored and the call
// fails with DependencyUnavailable. Blocked leaves the table empty.
func (m *RoutingManager) Reconcile(segment models.Segment, target models.Target) (*Egress, error) {
	table := segment.TableID()
	if table == 0 {
		return nil, errors.NewConfigError(fmt.Sprintf("unknown segment %q", segment), nil)
	}

	egress, err := m.Resolve(target)
	if err != nil {
		return nil, err
	}

	previous, err := m.backend.ListRoutes(table)
	if err != nil {
		return nil, errors.NewDependencyError(fmt.Sprintf("failed to list routes of table %d", table), err)
	}

	if err := m.backend.FlushTable(table); err != nil {
		return nil, errors.NewDependencyError(fmt.Sprintf("failed to flush table %d", table), err)
	}

	if egress == nil {
		log.Infof("[%s] Table %d flushed, segment is blocked", segment, table)
		return nil, nil
	}

	if err := m.backend.AddDefaultRoute(table, egress.Interface, egress.Gateway); err != nil {
		m.restore(segment, previous)
		return nil, errors.NewDependencyError(
			fmt.Sprintf("failed to install default route %s in table %d", egress, table), err)
	}

	log.Infof("[%s] Table %d: default %s", segment, table, egress)
	return egress, nil
}

func (m *RoutingManager) restore(segment models.Segment, routes []Route) {
	table := segment.TableID()
	if err := m.backend.FlushTable(table); err != nil {
		log.Errorf("[%s] Failed to flush table %d before restore: %v", segment, table, err)
		return
	}
	for _, route := range routes {
		if !route.IsDefault() {
			log.Warnf("[%s] Not restoring non-default route [%s]", segment, route)
			continue
		}
		if err := m.backend.AddDefaultRoute(table, route.Interface, route.Gateway); err != nil {
			log.Errorf("[%s] Failed to restore route [%s]: %v", segment, route, err)
		}
	}
}

// FlushSegment empties the segment's table, engaging its kill switch.
func (m *RoutingManager) FlushSegment(segment models.Segment) error {
	if err := m.backend.FlushTable(segment.TableID()); err != nil {
		return errors.NewDependencyError(fmt.Sprintf("failed to flush table %d", segment.TableID()), err)
	}
	return nil
}

// Routes returns the current contents of the segment's table.
func (m *RoutingManager) Routes(segment models.Segment) ([]Route, error) {
	routes, err := m.backend.ListRoutes(segment.TableID())
	if err != nil {
		return nil, errors.NewDependencyError(fmt.Sprintf("failed to list routes of table %d", segment.TableID()), err)
	}
	return routes, nil
}

// Rule returns the lookup rule of a segment.
func (m *RoutingManager) Rule(segment models.Segment) Rule {
	return Rule{
		Mark:     segment.FwMark(),
		Table:    segment.TableID(),
		Priority: m.rulePriorityBase + segment.TableID(),
	}
}

// KillRule returns the unreachable rule matching the segment's mark once its
// table has no route.
func (m *RoutingManager) KillRule(segment models.Segment) Rule {
	return Rule{
		Mark:        segment.FwMark(),
		Priority:    m.rulePriorityBase + segment.TableID() + KillRuleOffset,
		Unreachable: true,
	}
}

// Rules returns the lookup rule and the kill rule of a segment.
func (m *RoutingManager) Rules(segment models.Segment) []Rule {
	return []Rule{m.Rule(segment), m.KillRule(segment)}
}

// InstallRules installs the policy rules of every segment, in table id order.
func (m *RoutingManager) InstallRules() error {
	for _, segment := range models.Segments() {
		for _, rule := range m.Rules(segment) {
			added, err := m.backend.EnsureRule(rule)
			if err != nil {
				return errors.NewDependencyError(fmt.Sprintf("failed to install [%s]", rule), err)
			}
			if added {
				log.Infof("[%s] Installed [%s]", segment, rule)
			} else {
				log.Debugf("[%s] [%s] already present", segment, rule)
			}
		}
	}
	return nil
}

// RemoveRules removes the policy rules and flushes every segment table.
func (m *RoutingManager) RemoveRules() error {
	for _, segment := range models.Segments() {
		for _, rule := range m.Rules(segment) {
			if removed, err := m.backend.DeleteRule(rule); err != nil {
				return errors.NewDependencyError(fmt.Sprintf("failed to remove [%s]", rule), err)
			} else if removed {
				log.Infof("[%s] Removed [%s]", segment, rule)
			}
		}
		if err := m.FlushSegment(segment); err != nil {
			return err
		}
	}
	return nil
}

// CheckRules reports, per segment, whether both of its policy rules are
// installed.
func (m *RoutingManager) CheckRules() (map[models.Segment]bool, error) {
	result := make(map[models.Segment]bool)
	for _, segment := range models.Segments() {
		present := true
		for _, rule := range m.Rules(segment) {
			exists, err := m.backend.RuleExists(rule)
			if err != nil {
				return nil, errors.NewDependencyError(fmt.Sprintf("failed to check rule of segment %s", segment), err)
			}
			present = present && exists
		}
		result[segment] = present
	}
	return result, nil
}
