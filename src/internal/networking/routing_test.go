package networking_test

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"testing"

	uerrors "github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/mocks"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/networking"
)

func vpn(t *testing.T, name string) models.Target {
	t.Helper()
	target, err := models.VPN(name)
	if err != nil {
		t.Fatalf("Invalid VPN name %q: %v", name, err)
	}
	return target
}

func defaultRoute(table int, iface string, gw net.IP) networking.Route {
	return networking.Route{Table: table, Destination: "default", Interface: iface, Gateway: gw}
}

func assertTable(t *testing.T, backend *mocks.FakeRoutingBackend, table int, expected ...networking.Route) {
	t.Helper()
	got := backend.TableRoutes(table)
	if len(got) != len(expected) {
		t.Fatalf("Table %d: expected %d route(s) %v, got %v", table, len(expected), expected, got)
	}
	for i := range expected {
		if got[i].String() != expected[i].String() {
			t.Errorf("Table %d route %d: expected [%s], got [%s]", table, i, expected[i], got[i])
		}
	}
}

func TestReconcile_VPNPresent(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("mullvad")
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	egress, err := m.Reconcile(models.SegmentPentest, vpn(t, "mullvad"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if egress.Interface != "mullvad" {
		t.Errorf("Expected egress mullvad, got %v", egress)
	}
	assertTable(t, backend, 100, defaultRoute(100, "mullvad", nil))
}

func TestReconcile_VPNFallbackOrder(t *testing.T) {
	tests := []struct {
		name       string
		interfaces []string
		expected   string
	}{
		{"literal name wins", []string{"corp", "tun-corp", "tun0"}, "corp"},
		{"tun- prefix", []string{"tun-corp", "tun0"}, "tun-corp"},
		{"generic tun0", []string{"tun0"}, "tun0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := mocks.NewFakeRoutingBackend(tt.interfaces...)
			m := networking.NewRoutingManager(backend, "wlan0", 0)

			egress, err := m.Reconcile(models.SegmentOffice, vpn(t, "corp"))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if egress.Interface != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, egress.Interface)
			}
		})
	}
}

func TestReconcile_VPNAbsentLeavesTableUnchanged(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("wlan0")
	backend.Egress = &networking.Egress{Interface: "wlan0", Gateway: net.ParseIP("192.0.2.1")}
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	if _, err := m.Reconcile(models.SegmentDev, models.Direct()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	before := backend.TableRoutes(103)
	flushes := backend.FlushTableCalls

	_, err := m.Reconcile(models.SegmentDev, vpn(t, "mullvad"))
	if !errors.Is(err, uerrors.ErrResourceNotFound) {
		t.Fatalf("Expected ResourceNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "mullvad") {
		t.Errorf("Expected error to name the VPN, got %v", err)
	}
	if backend.FlushTableCalls != flushes {
		t.Errorf("Table must not be flushed on resolution failure")
	}
	if !reflect.DeepEqual(before, backend.TableRoutes(103)) {
		t.Errorf("Table changed: before %v, after %v", before, backend.TableRoutes(103))
	}
}

func TestReconcile_Direct(t *testing.T) {
	t.Run("with gateway", func(t *testing.T) {
		backend := mocks.NewFakeRoutingBackend("wlan0")
		backend.Egress = &networking.Egress{Interface: "wlan0", Gateway: net.ParseIP("192.0.2.1")}
		m := networking.NewRoutingManager(backend, "wlan0", 0)

		if _, err := m.Reconcile(models.SegmentDev, models.Direct()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		assertTable(t, backend, 103, defaultRoute(103, "wlan0", net.ParseIP("192.0.2.1")))
		if got := backend.TableRoutes(103)[0].String(); got != "default via 192.0.2.1 dev wlan0" {
			t.Errorf("Unexpected route text: %s", got)
		}
	})

	t.Run("gateway-less fallback", func(t *testing.T) {
		backend := mocks.NewFakeRoutingBackend("wlan0")
		m := networking.NewRoutingManager(backend, "wlan0", 0)

		if _, err := m.Reconcile(models.SegmentBrowse, models.Direct()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		assertTable(t, backend, 102, defaultRoute(102, "wlan0", nil))
	})

	t.Run("no WAN at all", func(t *testing.T) {
		backend := mocks.NewFakeRoutingBackend()
		m := networking.NewRoutingManager(backend, "wlan0", 0)

		_, err := m.Reconcile(models.SegmentBrowse, models.Direct())
		if !errors.Is(err, uerrors.ErrResourceNotFound) {
			t.Fatalf("Expected ResourceNotFound, got %v", err)
		}
		assertTable(t, backend, 102)
	})

	t.Run("no WAN configured", func(t *testing.T) {
		backend := mocks.NewFakeRoutingBackend("wlan0")
		m := networking.NewRoutingManager(backend, "", 0)

		_, err := m.Reconcile(models.SegmentBrowse, models.Direct())
		if !errors.Is(err, uerrors.ErrResourceNotFound) {
			t.Fatalf("Expected ResourceNotFound, got %v", err)
		}
	})
}

func TestReconcile_BlockedEmptiesTable(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("mullvad")
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	if _, err := m.Reconcile(models.SegmentOffice, vpn(t, "mullvad")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	egress, err := m.Reconcile(models.SegmentOffice, models.Blocked())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if egress != nil {
		t.Errorf("Expected no egress for blocked, got %v", egress)
	}
	assertTable(t, backend, 101)
}

func TestReconcile_FlushDiscipline(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("wgA", "wgB")
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	if _, err := m.Reconcile(models.SegmentBrowse, vpn(t, "wgA")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := m.Reconcile(models.SegmentBrowse, vpn(t, "wgB")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertTable(t, backend, 102, defaultRoute(102, "wgB", nil))
}

func TestReconcile_Idempotent(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("mullvad")
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	for i := 0; i < 2; i++ {
		if _, err := m.Reconcile(models.SegmentPentest, vpn(t, "mullvad")); err != nil {
			t.Fatalf("Unexpected error on call %d: %v", i, err)
		}
	}
	assertTable(t, backend, 100, defaultRoute(100, "mullvad", nil))
}

func TestReconcile_AddFailureRestoresPreviousRoute(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("wgA", "wgB")
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	if _, err := m.Reconcile(models.SegmentDev, vpn(t, "wgA")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	backend.AddDefaultRouteFunc = func(table int, iface string, gateway net.IP) error {
		if iface == "wgB" {
			return fmt.Errorf("operation not permitted")
		}
		return nil
	}

	_, err := m.Reconcile(models.SegmentDev, vpn(t, "wgB"))
	if !errors.Is(err, uerrors.ErrDependencyUnavailable) {
		t.Fatalf("Expected DependencyUnavailable, got %v", err)
	}
	assertTable(t, backend, 103, defaultRoute(103, "wgA", nil))
}

func TestReconcile_SegmentsAreIndependent(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("mullvad")
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	if _, err := m.Reconcile(models.SegmentPentest, vpn(t, "mullvad")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := m.Reconcile(models.SegmentOffice, models.Blocked()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertTable(t, backend, 100, defaultRoute(100, "mullvad", nil))
	assertTable(t, backend, 101)
}

func TestInstallRules(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend()
	m := networking.NewRoutingManager(backend, "wlan0", 1000)

	if err := m.InstallRules(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Idempotent.
	if err := m.InstallRules(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(backend.Rules) != 8 {
		t.Fatalf("Expected 8 rules, got %d", len(backend.Rules))
	}

	prev := 0
	for _, s := range models.Segments() {
		rule := m.Rule(s)
		if !backend.Rules[rule] {
			t.Errorf("Missing rule %s", rule)
		}
		if rule.Mark != uint32(rule.Table) {
			t.Errorf("fwmark must equal table id: %s", rule)
		}
		if rule.Priority <= prev {
			t.Errorf("Priorities must increase with table ids: %s", rule)
		}
		prev = rule.Priority

		kill := m.KillRule(s)
		if !backend.Rules[kill] {
			t.Errorf("Missing unreachable rule %s", kill)
		}
		if !kill.Unreachable || kill.Table != 0 || kill.Mark != rule.Mark {
			t.Errorf("Unexpected unreachable rule %+v for %s", kill, s)
		}
		if kill.Priority <= rule.Priority || kill.Priority >= 32766 {
			t.Errorf("Unreachable rule must sit between lookup and main: %s", kill)
		}
	}

	status, err := m.CheckRules()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for s, ok := range status {
		if !ok {
			t.Errorf("Rule of %s reported missing", s)
		}
	}

	if err := m.RemoveRules(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(backend.Rules) != 0 {
		t.Errorf("Expected rules to be removed, got %v", backend.Rules)
	}
}

func TestCheckRules_MissingKillRule(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend()
	m := networking.NewRoutingManager(backend, "wlan0", 0)

	if err := m.InstallRules(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	delete(backend.Rules, m.KillRule(models.SegmentDev))

	status, err := m.CheckRules()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if status[models.SegmentDev] {
		t.Errorf("Expected dev to be reported incomplete without its unreachable rule")
	}
	if !status[models.SegmentOffice] {
		t.Errorf("Expected office rules to be reported present")
	}
}

func TestRule_String(t *testing.T) {
	m := networking.NewRoutingManager(mocks.NewFakeRoutingBackend(), "wlan0", 0)

	if got := m.Rule(models.SegmentDev).String(); got != "rule 103: fwmark 103 lookup 103" {
		t.Errorf("Unexpected lookup rule %q", got)
	}
	if got := m.KillRule(models.SegmentDev).String(); got != "rule 1103: fwmark 103 unreachable" {
		t.Errorf("Unexpected unreachable rule %q", got)
	}
}

func TestRoute_String(t *testing.T) {
	tests := []struct {
		route    networking.Route
		expected string
	}{
		{defaultRoute(100, "mullvad", nil), "default dev mullvad"},
		{defaultRoute(103, "wlan0", net.ParseIP("192.0.2.1")), "default via 192.0.2.1 dev wlan0"},
		{networking.Route{Table: 100, Destination: "10.0.0.0/8", Interface: "eth1"}, "10.0.0.0/8 dev eth1"},
	}
	for _, tt := range tests {
		if got := tt.route.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}
