package tunnel

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/utils"
)

const (
	SourceConfig     = "config"
	SourceDiscovered = "discovered"
)

// Descriptor is a statically known tunnel.
type Descriptor struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Unit       string   `json:"unit"`
	Source     string   `json:"source"`
	ConfigPath string   `json:"config_path,omitempty"`
	Address    string   `json:"address,omitempty"`
	Endpoint   string   `json:"endpoint,omitempty"`
	DNS        []string `json:"dns,omitempty"`
}

func fromConfig(t *config.TunnelConfig) Descriptor {
	return Descriptor{
		Name:     t.Name,
		Kind:     t.Kind,
		Unit:     t.UnitName(),
		Source:   SourceConfig,
		Address:  t.Address,
		Endpoint: t.Endpoint,
		DNS:      append([]string(nil), t.DNS...),
	}
}

// discover returns the tunnels found as <dir>/<name>.conf in the WireGuard
// and OpenVPN client directories. Files whose name is not a valid VPN name
// are skipped.
func discover(cfg *config.Config) []Descriptor {
	var out []Descriptor

	scan := func(dir, kind string) {
		if dir == "" {
			return
		}
		dir = cfg.ResolvePath(dir)
		matches, err := filepath.Glob(filepath.Join(dir, "*.conf"))
		if err != nil {
			log.Warnf("Failed to scan %s: %v", dir, err)
			return
		}
		for _, path := range matches {
			name := strings.TrimSuffix(filepath.Base(path), ".conf")
			if err := models.ValidateVPNName(name); err != nil {
				log.Debugf("Skipping %s: %v", path, err)
				continue
			}
			tc := &config.TunnelConfig{Name: name, Kind: kind}
			d := fromConfig(tc)
			d.Source = SourceDiscovered
			d.ConfigPath = path
			if kind == config.TunnelKindWireGuard {
				d.Address, d.Endpoint, d.DNS = readWireGuardConf(path)
			}
			out = append(out, d)
		}
	}

	scan(cfg.General.WireGuardDir, config.TunnelKindWireGuard)
	scan(cfg.General.OpenVPNDir, config.TunnelKindOpenVPN)
	return out
}

// readWireGuardConf extracts Address, Endpoint and DNS from a wg-quick file.
func readWireGuardConf(path string) (address, endpoint string, dns []string) {
	f, err := os.Open(path)
	if err != nil {
		log.Debugf("Failed to read %s: %v", path, err)
		return
	}
	defer utils.CloseOrWarn(f)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "address":
			if address == "" {
				address = strings.TrimSpace(strings.Split(value, ",")[0])
			}
		case "endpoint":
			if endpoint == "" {
				endpoint = value
			}
		case "dns":
			for _, server := range strings.Split(value, ",") {
				if server = strings.TrimSpace(server); server != "" {
					dns = append(dns, server)
				}
			}
		}
	}
	return
}

// collect merges configured and discovered tunnels. Configured entries win
// over discovered files of the same name.
func collect(cfg *config.Config) []Descriptor {
	byName := make(map[string]Descriptor)
	for _, d := range discover(cfg) {
		if _, dup := byName[d.Name]; dup {
			log.Warnf("Tunnel %s exists as both WireGuard and OpenVPN config, using the first one", d.Name)
			continue
		}
		byName[d.Name] = d
	}
	for _, t := range cfg.Tunnels {
		byName[t.Name] = fromConfig(t)
	}

	out := make([]Descriptor, 0, len(byName))
	for _, d := range byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
