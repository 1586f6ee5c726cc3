package tunnel

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/mocks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	wgDir := filepath.Join(dir, "wireguard")
	ovpnDir := filepath.Join(dir, "openvpn")
	require.NoError(t, os.MkdirAll(wgDir, 0755))
	require.NoError(t, os.MkdirAll(ovpnDir, 0755))

	wgConf := "[Interface]\nAddress = 10.66.0.2/32, fd00::2/128\nDNS = 10.66.0.1\n\n[Peer]\nEndpoint = vpn.example.net:51820\n"
	require.NoError(t, os.WriteFile(filepath.Join(wgDir, "wg-home.conf"), []byte(wgConf), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(wgDir, "not valid name.conf"), []byte(""), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ovpnDir, "corp.conf"), []byte("client\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ovpnDir, "mullvad.conf"), []byte("client\n"), 0600))

	cfg := &config.Config{
		General: &config.GeneralConfig{WireGuardDir: wgDir, OpenVPNDir: ovpnDir},
		Tunnels: []*config.TunnelConfig{
			{Name: "mullvad", Kind: config.TunnelKindWireGuard, DNS: []string{"10.64.0.1"}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestManager_List(t *testing.T) {
	m := NewManager(testConfig(t), &mocks.MockCommandRunner{}, mocks.NewFakeRoutingBackend())

	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, "corp", list[0].Name)
	assert.Equal(t, "openvpn-client@corp.service", list[0].Unit)
	assert.Equal(t, SourceDiscovered, list[0].Source)

	assert.Equal(t, "mullvad", list[1].Name)
	assert.Equal(t, SourceConfig, list[1].Source, "configured tunnel must win over discovered file")
	assert.Equal(t, "wg-quick@mullvad.service", list[1].Unit)

	assert.Equal(t, "wg-home", list[2].Name)
	assert.Equal(t, "10.66.0.2/32", list[2].Address)
	assert.Equal(t, "vpn.example.net:51820", list[2].Endpoint)
	assert.Equal(t, []string{"10.66.0.1"}, list[2].DNS)
}

func TestManager_ConnectDisconnect(t *testing.T) {
	runner := &mocks.MockCommandRunner{}
	runner.On("Run", "systemctl", "start", "wg-quick@wg-home.service").Return("", nil).Once()
	runner.On("Run", "systemctl", "stop", "openvpn-client@corp.service").Return("", nil).Once()

	m := NewManager(testConfig(t), runner, mocks.NewFakeRoutingBackend())

	require.NoError(t, m.Connect(context.Background(), "wg-home"))
	require.NoError(t, m.Disconnect(context.Background(), "corp"))
	runner.AssertExpectations(t)
}

func TestManager_ConnectUnknownRunsNothing(t *testing.T) {
	runner := &mocks.MockCommandRunner{}
	m := NewManager(testConfig(t), runner, mocks.NewFakeRoutingBackend())

	for _, name := range []string{"nope", "blocked", "bad name"} {
		err := m.Connect(context.Background(), name)
		assert.ErrorIs(t, err, errors.ErrConfiguration, name)
		err = m.Disconnect(context.Background(), name)
		assert.ErrorIs(t, err, errors.ErrConfiguration, name)
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_ConnectUnitFailure(t *testing.T) {
	runner := &mocks.MockCommandRunner{}
	runner.On("Run", "systemctl", "start", "wg-quick@mullvad.service").
		Return("", fmt.Errorf("Job for wg-quick@mullvad.service failed")).Once()

	m := NewManager(testConfig(t), runner, mocks.NewFakeRoutingBackend())
	err := m.Connect(context.Background(), "mullvad")
	assert.ErrorIs(t, err, errors.ErrDependencyUnavailable)
}

func TestManager_ExistsAndInterface(t *testing.T) {
	backend := mocks.NewFakeRoutingBackend("wg-home", "tun-corp", "eth0")
	m := NewManager(testConfig(t), &mocks.MockCommandRunner{}, backend)

	exists, err := m.Exists("wg-home")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.Exists("mullvad")
	require.NoError(t, err)
	assert.False(t, exists)

	matched, err := m.ExistsPattern("wg-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"wg-home"}, matched)

	iface, ok, err := m.Interface("corp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tun-corp", iface)

	_, ok, err = m.Interface("mullvad")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeWireGuardClient struct {
	devices map[string]*wgtypes.Device
}

func (f *fakeWireGuardClient) Device(name string) (*wgtypes.Device, error) {
	if d, ok := f.devices[name]; ok {
		return d, nil
	}
	return nil, os.ErrNotExist
}

func (f *fakeWireGuardClient) Close() error { return nil }

func TestManager_Inspect(t *testing.T) {
	key, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	_, allowed, _ := net.ParseCIDR("0.0.0.0/0")
	handshake := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	client := &fakeWireGuardClient{devices: map[string]*wgtypes.Device{
		"mullvad": {
			Name:       "mullvad",
			PublicKey:  key.PublicKey(),
			ListenPort: 51820,
			Peers: []wgtypes.Peer{{
				PublicKey:         key.PublicKey(),
				Endpoint:          &net.UDPAddr{IP: net.ParseIP("185.0.0.1"), Port: 51820},
				AllowedIPs:        []net.IPNet{*allowed},
				LastHandshakeTime: handshake,
				ReceiveBytes:      1024,
				TransmitBytes:     2048,
			}},
		},
	}}

	m := NewManager(testConfig(t), &mocks.MockCommandRunner{}, mocks.NewFakeRoutingBackend()).
		WithWireGuardClient(func() (WireGuardClient, error) { return client, nil })

	status := m.Inspect("mullvad")
	require.NotNil(t, status)
	assert.Equal(t, 51820, status.ListenPort)
	require.Len(t, status.Peers, 1)
	assert.Equal(t, "185.0.0.1:51820", status.Peers[0].Endpoint)
	assert.Equal(t, []string{"0.0.0.0/0"}, status.Peers[0].AllowedIPs)
	assert.Equal(t, handshake, status.Peers[0].LatestHandshake)
	assert.Equal(t, int64(1024), status.Peers[0].TransferRx)

	assert.Nil(t, m.Inspect("corp"))

	failing := NewManager(testConfig(t), &mocks.MockCommandRunner{}, mocks.NewFakeRoutingBackend()).
		WithWireGuardClient(func() (WireGuardClient, error) { return nil, fmt.Errorf("not supported") })
	assert.Nil(t, failing.Inspect("mullvad"))
}
