package mocks

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/routervm/uplinkctl/src/internal/networking"
)

// FakeRoutingBackend is an in-memory networking.RoutingBackend.
//
// Routes are kept per table, interfaces and rules as sets. The ...Func hooks
// replace the default behaviour when set, and call counters record how the
// engine used the backend.
type FakeRoutingBackend struct {
	mu sync.Mutex

	Tables     map[int][]networking.Route
	Interfaces map[string]bool
	Rules      map[networking.Rule]bool
	// Egress is returned by DefaultEgress; nil means no default route.
	Egress *networking.Egress

	AddDefaultRouteFunc func(table int, iface string, gateway net.IP) error
	FlushTableFunc      func(table int) error
	InterfaceExistsFunc func(name string) (bool, error)
	DefaultEgressFunc   func() (*networking.Egress, error)

	FlushTableCalls      int
	AddDefaultRouteCalls int
	EnsureRuleCalls      int
	DeleteRuleCalls      int
}

// NewFakeRoutingBackend creates a backend with the given interfaces present.
func NewFakeRoutingBackend(interfaces ...string) *FakeRoutingBackend {
	b := &FakeRoutingBackend{
		Tables:     make(map[int][]networking.Route),
		Interfaces: make(map[string]bool),
		Rules:      make(map[networking.Rule]bool),
	}
	for _, iface := range interfaces {
		b.Interfaces[iface] = true
	}
	return b
}

// SetInterface adds or removes an interface.
func (b *FakeRoutingBackend) SetInterface(name string, present bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if present {
		b.Interfaces[name] = true
	} else {
		delete(b.Interfaces, name)
	}
}

// TableRoutes returns a copy of the routes of a table.
func (b *FakeRoutingBackend) TableRoutes(table int) []networking.Route {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]networking.Route(nil), b.Tables[table]...)
}

func (b *FakeRoutingBackend) InterfaceExists(name string) (bool, error) {
	if b.InterfaceExistsFunc != nil {
		return b.InterfaceExistsFunc(name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Interfaces[name], nil
}

func (b *FakeRoutingBackend) ListInterfaces() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.Interfaces))
	for name := range b.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *FakeRoutingBackend) FlushTable(table int) error {
	b.mu.Lock()
	b.FlushTableCalls++
	b.mu.Unlock()
	if b.FlushTableFunc != nil {
		if err := b.FlushTableFunc(table); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.Tables, table)
	return nil
}

func (b *FakeRoutingBackend) ListRoutes(table int) ([]networking.Route, error) {
	return b.TableRoutes(table), nil
}

func (b *FakeRoutingBackend) AddDefaultRoute(table int, iface string, gateway net.IP) error {
	b.mu.Lock()
	b.AddDefaultRouteCalls++
	b.mu.Unlock()
	if b.AddDefaultRouteFunc != nil {
		if err := b.AddDefaultRouteFunc(table, iface, gateway); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.Interfaces[iface] {
		return fmt.Errorf("link %s not found", iface)
	}
	for _, r := range b.Tables[table] {
		if r.IsDefault() {
			return fmt.Errorf("file exists: default route already present in table %d", table)
		}
	}
	b.Tables[table] = append(b.Tables[table], networking.Route{
		Table:       table,
		Destination: "default",
		Interface:   iface,
		Gateway:     gateway,
	})
	return nil
}

func (b *FakeRoutingBackend) DefaultEgress() (*networking.Egress, error) {
	if b.DefaultEgressFunc != nil {
		return b.DefaultEgressFunc()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Egress == nil {
		return nil, nil
	}
	egress := *b.Egress
	return &egress, nil
}

func (b *FakeRoutingBackend) EnsureRule(rule networking.Rule) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.EnsureRuleCalls++
	if b.Rules[rule] {
		return false, nil
	}
	b.Rules[rule] = true
	return true, nil
}

func (b *FakeRoutingBackend) DeleteRule(rule networking.Rule) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DeleteRuleCalls++
	if !b.Rules[rule] {
		return false, nil
	}
	delete(b.Rules, rule)
	return true, nil
}

func (b *FakeRoutingBackend) RuleExists(rule networking.Rule) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Rules[rule], nil
}
