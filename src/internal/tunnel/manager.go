// Package tunnel brings named VPN tunnels up and down and probes their state.
//
// Tunnels are never implemented here: WireGuard and OpenVPN are driven
// through their systemd units (wg-quick@<name>, openvpn-client@<name>).
package tunnel

import (
	"context"
	"fmt"
	"sort"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/networking"
	"github.com/routervm/uplinkctl/src/internal/shell"
	"github.com/routervm/uplinkctl/src/internal/utils"
)

const systemctl = "systemctl"

// Manager is the tunnel lifecycle manager.
type Manager struct {
	cfg      *config.Config
	runner   shell.CommandRunner
	prober   networking.InterfaceProber
	wgClient WireGuardClientFactory
}

func NewManager(cfg *config.Config, runner shell.CommandRunner, prober networking.InterfaceProber) *Manager {
	return &Manager{
		cfg:      cfg,
		runner:   runner,
		prober:   prober,
		wgClient: defaultWireGuardClient,
	}
}

// WithWireGuardClient replaces the factory used by Inspect.
func (m *Manager) WithWireGuardClient(factory WireGuardClientFactory) *Manager {
	m.wgClient = factory
	return m
}

// List returns the statically known tunnels sorted by name.
func (m *Manager) List() []Descriptor {
	return collect(m.cfg)
}

// Lookup returns the descriptor of a tunnel. An unknown name is a
// ConfigurationError.
func (m *Manager) Lookup(name string) (*Descriptor, error) {
	if err := models.ValidateVPNName(name); err != nil {
		return nil, err
	}
	for _, d := range m.List() {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, errors.NewConfigError(fmt.Sprintf("unknown VPN %q: no [[tunnel]] entry and no config file found", name), nil)
}

// Connect starts the tunnel's unit.
func (m *Manager) Connect(ctx context.Context, name string) error {
	return m.unitAction(ctx, name, "start")
}

// Disconnect stops the tunnel's unit.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	return m.unitAction(ctx, name, "stop")
}

func (m *Manager) unitAction(ctx context.Context, name, action string) error {
	d, err := m.Lookup(name)
	if err != nil {
		return err
	}

	log.Infof("[tunnel %s] systemctl %s %s", name, action, d.Unit)
	if _, err := m.runner.Run(ctx, systemctl, action, d.Unit); err != nil {
		if errors.CodeOf(err) == errors.ErrCodeDependency {
			return err
		}
		return errors.NewDependencyError(fmt.Sprintf("failed to %s %s", action, d.Unit), err)
	}
	return nil
}

// Exists reports whether an interface named exactly name is present.
func (m *Manager) Exists(name string) (bool, error) {
	exists, err := m.prober.InterfaceExists(name)
	if err != nil {
		return false, errors.NewDependencyError(fmt.Sprintf("failed to probe interface %s", name), err)
	}
	return exists, nil
}

// ExistsPattern returns the present interfaces matching a glob pattern
// such as "wg-*".
func (m *Manager) ExistsPattern(pattern string) ([]string, error) {
	names, err := m.prober.ListInterfaces()
	if err != nil {
		return nil, errors.NewDependencyError("failed to list interfaces", err)
	}
	var matched []string
	for _, n := range names {
		if utils.MatchInterfacePattern(pattern, n) {
			matched = append(matched, n)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// Interface returns the interface a VPN would be routed through, using the
// same candidate order as the routing manager. ok is false when none exists.
func (m *Manager) Interface(name string) (iface string, ok bool, err error) {
	for _, candidate := range networking.VPNInterfaceCandidates(name) {
		exists, err := m.Exists(candidate)
		if err != nil {
			return "", false, err
		}
		if exists {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// Inspect returns the WireGuard runtime state of an interface, or nil when
// it cannot be determined.
func (m *Manager) Inspect(iface string) *WireGuardStatus {
	client, err := m.wgClient()
	if err != nil {
		log.Debugf("[tunnel %s] wgctrl unavailable: %v", iface, err)
		return nil
	}
	defer utils.CloseOrWarn(client)

	device, err := client.Device(iface)
	if err != nil {
		log.Debugf("[tunnel %s] not a WireGuard device: %v", iface, err)
		return nil
	}
	return convertDevice(device)
}
