package service

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/domain"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/firewall"
	"github.com/routervm/uplinkctl/src/internal/mocks"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/networking"
	"github.com/routervm/uplinkctl/src/internal/tunnel"
)

type fakeChecker struct {
	result *firewall.CheckResult
	err    error
}

func (f *fakeChecker) Check(table string, chains []string) (*firewall.CheckResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeWireGuard struct {
	devices map[string]*wgtypes.Device
}

func (f *fakeWireGuard) Device(name string) (*wgtypes.Device, error) {
	if d, ok := f.devices[name]; ok {
		return d, nil
	}
	return nil, os.ErrNotExist
}

func (f *fakeWireGuard) Close() error { return nil }

type fixture struct {
	cfg     *config.Config
	backend *mocks.FakeRoutingBackend
	runner  *mocks.MockCommandRunner
	checker *fakeChecker
	ipt     *mocks.FakeIPTables
	wg      *fakeWireGuard
	svc     *ControlService
}

func newFixture(t *testing.T, interfaces ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.General.StateDir = filepath.Join(dir, "state")
	cfg.General.WANInterface = "wlan0"
	cfg.General.WireGuardDir = filepath.Join(dir, "wireguard")
	cfg.General.OpenVPNDir = filepath.Join(dir, "openvpn")
	cfg.Tunnels = []*config.TunnelConfig{
		{Name: "mullvad", Kind: config.TunnelKindWireGuard},
		{Name: "corp", Kind: config.TunnelKindOpenVPN},
	}

	f := &fixture{
		cfg:     cfg,
		backend: mocks.NewFakeRoutingBackend(interfaces...),
		runner:  &mocks.MockCommandRunner{},
		checker: &fakeChecker{result: &firewall.CheckResult{Table: "uplinkctl", TableLoaded: true}},
		ipt:     mocks.NewFakeIPTables(),
		wg:      &fakeWireGuard{devices: map[string]*wgtypes.Device{}},
	}

	deps := domain.NewTestDependencies(f.backend, f.runner, f.checker,
		func(cfg *config.Config) (domain.ClassifierRules, error) {
			return networking.NewIPTableRulesWithClient(f.ipt, cfg), nil
		}).
		WithWireGuardClient(func() (tunnel.WireGuardClient, error) { return f.wg, nil })

	f.svc = NewControlService(cfg, deps)
	return f
}

func (f *fixture) record(t *testing.T, segment models.Segment) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.cfg.General.StateDir, string(segment)))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) routes(segment models.Segment) []string {
	var out []string
	for _, r := range f.backend.TableRoutes(segment.TableID()) {
		out = append(out, r.String())
	}
	return out
}

func (f *fixture) mustAssign(t *testing.T, segment, target string) *AssignResult {
	t.Helper()
	result, err := f.svc.Assign(segment, target)
	require.NoError(t, err)
	return result
}

func TestAssign_VPNPresent(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")

	result := f.mustAssign(t, "pentest", "mullvad")
	assert.Equal(t, "default dev mullvad", result.Route)
	assert.Equal(t, models.TablePentest, result.Table)

	assert.Equal(t, []string{"default dev mullvad"}, f.routes(models.SegmentPentest))
	assert.Equal(t, "mullvad\n", f.record(t, models.SegmentPentest))
}

func TestAssign_VPNAbsentLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, "wlan0")
	f.mustAssign(t, "pentest", "blocked")

	_, err := f.svc.Assign("pentest", "mullvad")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrResourceNotFound)
	assert.Contains(t, err.Error(), "assign pentest -> mullvad failed")
	assert.Contains(t, err.Error(), "mullvad")

	assert.Equal(t, "blocked\n", f.record(t, models.SegmentPentest))
	assert.Empty(t, f.routes(models.SegmentPentest))
}

func TestAssign_UndefinedVPNKeepsPreviousRoute(t *testing.T) {
	f := newFixture(t, "wlan0")
	f.backend.Egress = &networking.Egress{Interface: "wlan0", Gateway: net.ParseIP("192.0.2.1")}
	f.mustAssign(t, "dev", "direct")

	recordBefore := f.record(t, models.SegmentDev)
	routesBefore := f.routes(models.SegmentDev)
	flushesBefore := f.backend.FlushTableCalls

	_, err := f.svc.Assign("dev", "nosuchvpn")
	assert.ErrorIs(t, err, errors.ErrResourceNotFound)

	assert.Equal(t, recordBefore, f.record(t, models.SegmentDev))
	assert.Equal(t, routesBefore, f.routes(models.SegmentDev))
	assert.Equal(t, flushesBefore, f.backend.FlushTableCalls, "table must not be touched")
}

func TestAssign_Direct(t *testing.T) {
	t.Run("Known gateway", func(t *testing.T) {
		f := newFixture(t, "wlan0")
		f.backend.Egress = &networking.Egress{Interface: "wlan0", Gateway: net.ParseIP("192.0.2.1")}

		f.mustAssign(t, "dev", "direct")
		assert.Equal(t, []string{"default via 192.0.2.1 dev wlan0"}, f.routes(models.SegmentDev))
		assert.Equal(t, "direct\n", f.record(t, models.SegmentDev))
	})

	t.Run("Gateway-less fallback", func(t *testing.T) {
		f := newFixture(t, "wlan0")

		f.mustAssign(t, "dev", "direct")
		assert.Equal(t, []string{"default dev wlan0"}, f.routes(models.SegmentDev))
	})

	t.Run("No WAN at all", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Assign("dev", "direct")
		assert.ErrorIs(t, err, errors.ErrResourceNotFound)
		assert.Empty(t, f.record(t, models.SegmentDev))
		assert.Empty(t, f.routes(models.SegmentDev))
	})
}

func TestAssign_BlockedFlushes(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.mustAssign(t, "office", "mullvad")
	require.Len(t, f.routes(models.SegmentOffice), 1)

	result := f.mustAssign(t, "office", "blocked")
	assert.Empty(t, result.Route)
	assert.Empty(t, f.routes(models.SegmentOffice))
	assert.Equal(t, "blocked\n", f.record(t, models.SegmentOffice))
}

func TestAssign_SwitchingVPNLeavesNoResidualRoute(t *testing.T) {
	f := newFixture(t, "wlan0", "wgA", "wgB")

	f.mustAssign(t, "browse", "wgA")
	f.mustAssign(t, "browse", "wgB")

	assert.Equal(t, []string{"default dev wgB"}, f.routes(models.SegmentBrowse))
	assert.Equal(t, "wgB\n", f.record(t, models.SegmentBrowse))
}

func TestAssign_Idempotent(t *testing.T) {
	f := newFixture(t, "wlan0", "tun-corp")

	f.mustAssign(t, "office", "corp")
	routesOnce := f.routes(models.SegmentOffice)
	recordOnce := f.record(t, models.SegmentOffice)

	f.mustAssign(t, "office", "corp")
	assert.Equal(t, routesOnce, f.routes(models.SegmentOffice))
	assert.Equal(t, recordOnce, f.record(t, models.SegmentOffice))
	assert.Equal(t, []string{"default dev tun-corp"}, routesOnce)
}

func TestAssign_GenericTunnelFallback(t *testing.T) {
	f := newFixture(t, "wlan0", "tun0")

	f.mustAssign(t, "pentest", "mullvad")
	assert.Equal(t, []string{"default dev tun0"}, f.routes(models.SegmentPentest))
}

func TestAssign_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		target  string
	}{
		{"Unknown segment", "guest", "blocked"},
		{"Malformed target", "office", "not a target"},
		{"Reserved name case", "office", "Direct"},
		{"Empty target", "office", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "wlan0")

			_, err := f.svc.Assign(tt.segment, tt.target)
			assert.ErrorIs(t, err, errors.ErrConfiguration)
			assert.Contains(t, err.Error(), fmt.Sprintf("assign %s -> %s failed", tt.segment, tt.target))
			assert.Zero(t, f.backend.FlushTableCalls)
			assert.Zero(t, f.backend.AddDefaultRouteCalls)
		})
	}
}

func TestAssign_RouteFailureRestoresPreviousRoute(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad", "wgB")
	f.mustAssign(t, "pentest", "mullvad")

	f.backend.AddDefaultRouteFunc = func(table int, iface string, gateway net.IP) error {
		if iface == "wgB" {
			return fmt.Errorf("operation not permitted")
		}
		return nil
	}

	_, err := f.svc.Assign("pentest", "wgB")
	assert.ErrorIs(t, err, errors.ErrDependencyUnavailable)

	assert.Equal(t, []string{"default dev mullvad"}, f.routes(models.SegmentPentest))
	assert.Equal(t, "mullvad\n", f.record(t, models.SegmentPentest))
}

// breakStoreDuringRouteChange swaps the state directory for a plain file while
// the route towards iface is installed, so the following store write fails.
// The returned function puts the directory back.
func (f *fixture) breakStoreDuringRouteChange(t *testing.T, iface string) (repair func()) {
	t.Helper()
	dir := f.cfg.General.StateDir
	moved := dir + ".moved"

	f.backend.AddDefaultRouteFunc = func(table int, name string, gateway net.IP) error {
		if name != iface {
			return nil
		}
		require.NoError(t, os.Rename(dir, moved))
		require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0644))
		return nil
	}
	return func() {
		f.backend.AddDefaultRouteFunc = nil
		require.NoError(t, os.Remove(dir))
		require.NoError(t, os.Rename(moved, dir))
	}
}

func TestAssign_StoreFailureRollsBackRoute(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.backend.Egress = &networking.Egress{Interface: "wlan0", Gateway: net.ParseIP("192.0.2.1")}
	f.mustAssign(t, "pentest", "mullvad")

	repair := f.breakStoreDuringRouteChange(t, "wlan0")
	_, err := f.svc.Assign("pentest", "direct")
	repair()

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInternal)
	assert.Contains(t, err.Error(), "assign pentest -> direct failed")
	assert.Equal(t, "mullvad\n", f.record(t, models.SegmentPentest))
	assert.Equal(t, []string{"default dev mullvad"}, f.routes(models.SegmentPentest))
}

func TestAssign_StoreFailureWithoutRecordFlushes(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.mustAssign(t, "office", "blocked")
	require.NoError(t, os.Remove(filepath.Join(f.cfg.General.StateDir, "office")))

	repair := f.breakStoreDuringRouteChange(t, "mullvad")
	_, err := f.svc.Assign("office", "mullvad")
	repair()

	require.Error(t, err)
	assert.Empty(t, f.record(t, models.SegmentOffice))
	assert.Empty(t, f.routes(models.SegmentOffice))
}

func TestAssign_DependencyFailureOnFlush(t *testing.T) {
	f := newFixture(t, "wlan0")
	f.backend.FlushTableFunc = func(table int) error {
		return fmt.Errorf("netlink: permission denied")
	}

	_, err := f.svc.Assign("office", "blocked")
	assert.ErrorIs(t, err, errors.ErrDependencyUnavailable)
	assert.Empty(t, f.record(t, models.SegmentOffice))
}

func TestAssign_ConcurrentSameSegment(t *testing.T) {
	f := newFixture(t, "wlan0", "wgA", "wgB")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		target := "wgA"
		if i%2 == 1 {
			target = "wgB"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Assign("browse", target)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	record := f.record(t, models.SegmentBrowse)
	routes := f.routes(models.SegmentBrowse)
	require.Len(t, routes, 1)
	assert.Equal(t, "default dev "+record[:len(record)-1], routes[0])
}

func TestStatus_AfterScenarios(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.backend.Egress = &networking.Egress{Interface: "wlan0", Gateway: net.ParseIP("192.0.2.1")}

	f.mustAssign(t, "pentest", "mullvad")
	f.mustAssign(t, "dev", "direct")
	f.mustAssign(t, "office", "blocked")

	statuses := f.svc.Status(context.Background(), StatusOptions{})
	require.Len(t, statuses, 4)

	byName := make(map[models.Segment]SegmentStatus)
	for _, s := range statuses {
		byName[s.Segment] = s
	}

	assert.Equal(t, StateConnected, byName[models.SegmentPentest].State)
	assert.Equal(t, "vpn mullvad (connected via mullvad)", byName[models.SegmentPentest].Describe())
	assert.Equal(t, []string{"default dev mullvad"}, byName[models.SegmentPentest].Routes)

	assert.Equal(t, StateBlocked, byName[models.SegmentOffice].State)
	assert.Equal(t, "blocked", byName[models.SegmentOffice].Describe())

	assert.Equal(t, StateDirect, byName[models.SegmentDev].State)
	assert.Equal(t, "direct", byName[models.SegmentDev].Describe())

	assert.Equal(t, StateUnknown, byName[models.SegmentBrowse].State)
	assert.Contains(t, byName[models.SegmentBrowse].Error, "no assignment recorded")
}

func TestStatus_TableIDs(t *testing.T) {
	f := newFixture(t)

	statuses := f.svc.Status(context.Background(), StatusOptions{})
	require.Len(t, statuses, 4)
	assert.Equal(t, models.SegmentPentest, statuses[0].Segment)
	assert.Equal(t, 100, statuses[0].Table)
	assert.Equal(t, 101, statuses[1].Table)
	assert.Equal(t, 102, statuses[2].Table)
	assert.Equal(t, 103, statuses[3].Table)
}

func TestStatus_VPNInterfaceGone(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.mustAssign(t, "pentest", "mullvad")

	f.backend.SetInterface("mullvad", false)

	status := f.svc.SegmentStatus(context.Background(), models.SegmentPentest, StatusOptions{})
	assert.Equal(t, StateDisconnected, status.State)
	assert.Equal(t, "vpn mullvad (disconnected)", status.Describe())
	assert.Empty(t, status.Error)
}

func TestStatus_UnrelatedGenericTunnelIsNotConnected(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad", "tun0")
	f.mustAssign(t, "pentest", "mullvad")

	// The kernel drops the table route together with the interface.
	f.backend.SetInterface("mullvad", false)
	require.NoError(t, f.backend.FlushTable(models.TablePentest))

	status := f.svc.SegmentStatus(context.Background(), models.SegmentPentest, StatusOptions{})
	assert.Equal(t, StateDisconnected, status.State)
	assert.Equal(t, "vpn mullvad (disconnected)", status.Describe())
	assert.Empty(t, status.Interface)
}

func TestStatus_GenericTunnelInUse(t *testing.T) {
	f := newFixture(t, "wlan0", "tun0")
	f.mustAssign(t, "pentest", "mullvad")

	status := f.svc.SegmentStatus(context.Background(), models.SegmentPentest, StatusOptions{})
	assert.Equal(t, StateConnected, status.State)
	assert.Equal(t, "vpn mullvad (connected via tun0)", status.Describe())
}

func TestStatus_ProbeFailureIsNotAnError(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.mustAssign(t, "pentest", "mullvad")

	f.backend.InterfaceExistsFunc = func(name string) (bool, error) {
		return false, fmt.Errorf("netlink socket closed")
	}

	status := f.svc.SegmentStatus(context.Background(), models.SegmentPentest, StatusOptions{})
	assert.Equal(t, StateDisconnected, status.State)
	assert.Contains(t, status.Error, "netlink socket closed")
}

func TestStatus_CorruptRecord(t *testing.T) {
	f := newFixture(t, "wlan0")
	require.NoError(t, os.MkdirAll(f.cfg.General.StateDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.General.StateDir, "office"), []byte("no such thing\n"), 0644))

	status := f.svc.SegmentStatus(context.Background(), models.SegmentOffice, StatusOptions{})
	assert.Equal(t, StateUnknown, status.State)
	assert.Contains(t, status.Describe(), "corrupt assignment record")
}

func TestStatus_ProbeInspectsWireGuard(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad")
	f.mustAssign(t, "pentest", "mullvad")
	f.wg.devices["mullvad"] = &wgtypes.Device{Name: "mullvad", ListenPort: 51820}

	status := f.svc.SegmentStatus(context.Background(), models.SegmentPentest, StatusOptions{Probe: true})
	require.NotNil(t, status.WireGuard)
	assert.Equal(t, 51820, status.WireGuard.ListenPort)
	assert.Empty(t, status.DNSLatency, "tunnel has no DNS server configured")

	status = f.svc.SegmentStatus(context.Background(), models.SegmentPentest, StatusOptions{})
	assert.Nil(t, status.WireGuard)
}

func TestList(t *testing.T) {
	f := newFixture(t, "wlan0", "mullvad", "tun0")

	tunnels := f.svc.List()
	require.Len(t, tunnels, 2)

	assert.Equal(t, "corp", tunnels[0].Name)
	assert.False(t, tunnels[0].Up, "generic tun0 must not count as corp being up")
	assert.Equal(t, "openvpn-client@corp.service", tunnels[0].Unit)

	assert.Equal(t, "mullvad", tunnels[1].Name)
	assert.True(t, tunnels[1].Up)
	assert.Equal(t, "mullvad", tunnels[1].Interface)
}

func TestConnectDisconnect(t *testing.T) {
	f := newFixture(t, "wlan0")
	ctx := context.Background()

	f.runner.On("Run", "systemctl", "start", "wg-quick@mullvad.service").Return("", nil).Once()
	f.runner.On("Run", "systemctl", "stop", "openvpn-client@corp.service").Return("", nil).Once()

	require.NoError(t, f.svc.Connect(ctx, "mullvad"))
	require.NoError(t, f.svc.Disconnect(ctx, "corp"))
	f.runner.AssertExpectations(t)
}

func TestConnect_UnknownVPN(t *testing.T) {
	f := newFixture(t, "wlan0")

	err := f.svc.Connect(context.Background(), "nosuchvpn")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.Contains(t, err.Error(), "connect nosuchvpn failed")
	f.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestConnect_UnitFailure(t *testing.T) {
	f := newFixture(t, "wlan0")
	f.runner.On("Run", "systemctl", "start", "wg-quick@mullvad.service").
		Return("", errors.NewDependencyError("systemctl failed", nil)).Once()

	err := f.svc.Connect(context.Background(), "mullvad")
	assert.ErrorIs(t, err, errors.ErrDependencyUnavailable)
}
