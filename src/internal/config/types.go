package config

import (
	"fmt"
	"path/filepath"

	"github.com/routervm/uplinkctl/src/internal/models"
)

const (
	ClassifierBackendNftables = "nftables"
	ClassifierBackendIPTables = "iptables"

	TunnelKindWireGuard = "wireguard"
	TunnelKindOpenVPN   = "openvpn"
)

type Config struct {
	// General holds general configuration.
	General *GeneralConfig `toml:"general"`
	// Classifier selects how packets are marked with their segment's table id.
	Classifier *ClassifierConfig `toml:"classifier"`
	// Firewall holds the static inputs of the generated ruleset.
	Firewall *FirewallConfig `toml:"firewall"`
	// Segments describes the four network segments. Missing segments get built-in defaults.
	Segments []*SegmentConfig `toml:"segment,omitempty"`
	// Tunnels lists statically configured VPN tunnels.
	Tunnels []*TunnelConfig `toml:"tunnel,omitempty"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// StateDir holds one assignment file per segment.
	StateDir string `toml:"state_dir" json:"state_dir" validate:"required"`
	// WANInterface is used when the main table has no default route (gateway-less fallback) and by the firewall.
	WANInterface string `toml:"wan_interface" json:"wan_interface" validate:"required,ifname"`
	// ManagementSubnet never routes anywhere; the firewall drops its forwarded traffic.
	ManagementSubnet string `toml:"management_subnet" json:"management_subnet" validate:"required,cidrv4"`
	// RulePriorityBase is added to the table id to get the ip rule priority (default: 0 -> 100..103).
	// The unreachable rules sit 1000 above, below the main table rule at 32766.
	RulePriorityBase int `toml:"rule_priority_base" json:"rule_priority_base" validate:"gte=0,lte=31000"`
	// WireGuardDir is scanned for <name>.conf tunnel definitions (default: /etc/wireguard).
	WireGuardDir string `toml:"wireguard_dir" json:"wireguard_dir"`
	// OpenVPNDir is scanned for <name>.conf tunnel definitions (default: /etc/openvpn/client).
	OpenVPNDir string `toml:"openvpn_dir" json:"openvpn_dir"`
}

type ClassifierConfig struct {
	// Backend is "nftables" (marks are part of the firewall ruleset) or "iptables" (installed at init).
	Backend string `toml:"backend" json:"backend" validate:"required,oneof=nftables iptables"`
	// IPTablesRules are used by the iptables backend. Available variables: {{segment}}, {{subnet}}, {{fwmark}}, {{table}}, {{interface}}.
	IPTablesRules []*IPTablesRule `toml:"iptables_rule,omitempty" json:"iptables_rule,omitempty" validate:"dive"`
}

type IPTablesRule struct {
	Chain string   `toml:"chain" json:"chain" validate:"required"`
	Table string   `toml:"table" json:"table" validate:"required"`
	Rule  []string `toml:"rule" json:"rule" validate:"required,min=1"`
}

type FirewallConfig struct {
	// TableName is the nftables table owning every generated chain.
	TableName string `toml:"table_name" json:"table_name" validate:"required,nft_identifier"`
	// AllowInterSegment disables the explicit segment-to-segment drop rules.
	AllowInterSegment bool `toml:"allow_inter_segment" json:"allow_inter_segment"`
	// VPNInterfacePatterns are the egress interface patterns accepted for every segment.
	VPNInterfacePatterns []string `toml:"vpn_interface_patterns" json:"vpn_interface_patterns" validate:"required,min=1,dive,ifname_pattern"`
	// OutputPath is where "init" and "firewall apply" store the rendered ruleset (optional).
	OutputPath string `toml:"output_path" json:"output_path,omitempty"`
}

type SegmentConfig struct {
	// Name is one of pentest, office, browse, dev.
	Name string `toml:"name" json:"name" validate:"required,segment_name"`
	// Subnet is the segment's IPv4 subnet.
	Subnet string `toml:"subnet" json:"subnet" validate:"required,cidrv4"`
	// Interface is the router-side ingress interface (optional).
	Interface string `toml:"interface" json:"interface,omitempty" validate:"omitempty,ifname"`
	// DefaultTarget is written to the assignment store at first activation.
	DefaultTarget string `toml:"default_target" json:"default_target" validate:"required,target"`
	// AllowDirect lets the firewall forward this segment's traffic to the WAN interface.
	AllowDirect bool `toml:"allow_direct" json:"allow_direct"`
}

type TunnelConfig struct {
	Name       string   `toml:"name" json:"name" validate:"required,vpn_name"`
	Kind       string   `toml:"kind" json:"kind" validate:"required,oneof=wireguard openvpn"`
	Address    string   `toml:"address" json:"address,omitempty" validate:"omitempty,cidr"`
	PublicKey  string   `toml:"public_key" json:"public_key,omitempty" validate:"omitempty,base64"`
	Endpoint   string   `toml:"endpoint" json:"endpoint,omitempty" validate:"omitempty,hostname_port"`
	AllowedIPs []string `toml:"allowed_ips" json:"allowed_ips,omitempty" validate:"dive,cidr"`
	Keepalive  int      `toml:"keepalive" json:"keepalive,omitempty" validate:"gte=0,lte=65535"`
	DNS        []string `toml:"dns" json:"dns,omitempty" validate:"dive,ip"`
	// Unit overrides the systemd unit used for connect/disconnect.
	Unit string `toml:"unit" json:"unit,omitempty"`
}

func (c *Config) GetConfigDir() string {
	return filepath.Dir(c._absConfigFilePath)
}

// ResolvePath makes a path from the configuration file absolute. Relative
// paths are taken relative to the directory holding the configuration file.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.GetConfigDir(), path)
}

func (c *Config) GetAbsStateDir() string {
	return c.ResolvePath(c.General.StateDir)
}

// Segment returns the configuration of the given segment, or nil.
func (c *Config) Segment(s models.Segment) *SegmentConfig {
	for _, seg := range c.Segments {
		if seg.Name == string(s) {
			return seg
		}
	}
	return nil
}

// Tunnel returns the statically configured tunnel with the given name, or nil.
func (c *Config) Tunnel(name string) *TunnelConfig {
	for _, t := range c.Tunnels {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// DefaultTargets returns the per-segment target materialized at first activation.
func (c *Config) DefaultTargets() (map[models.Segment]models.Target, error) {
	out := make(map[models.Segment]models.Target, len(c.Segments))
	for _, seg := range c.Segments {
		target, err := models.ParseTarget(seg.DefaultTarget)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", seg.Name, err)
		}
		out[models.Segment(seg.Name)] = target
	}
	return out, nil
}

// RulePriority returns the ip rule priority for a segment. Priorities increase
// strictly with table ids.
func (c *Config) RulePriority(s models.Segment) int {
	return c.General.RulePriorityBase + s.TableID()
}

// UnitName returns the systemd unit driving the tunnel.
func (t *TunnelConfig) UnitName() string {
	if t.Unit != "" {
		return t.Unit
	}
	if t.Kind == TunnelKindOpenVPN {
		return "openvpn-client@" + t.Name + ".service"
	}
	return "wg-quick@" + t.Name + ".service"
}
