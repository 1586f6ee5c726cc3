package config

import (
	"github.com/routervm/uplinkctl/src/internal/models"
)

const (
	DefaultStateDir         = "/var/lib/uplinkctl/assignments"
	DefaultWANInterface     = "eth0"
	DefaultManagementSubnet = "10.100.0.0/24"
	DefaultFirewallTable    = "uplinkctl"
	DefaultWireGuardDir     = "/etc/wireguard"
	DefaultOpenVPNDir       = "/etc/openvpn/client"
)

var defaultVPNInterfacePatterns = []string{"wg-*", "tun*"}

var defaultSegments = map[models.Segment]SegmentConfig{
	models.SegmentPentest: {Subnet: "10.100.1.0/24", DefaultTarget: "blocked"},
	models.SegmentOffice:  {Subnet: "10.100.2.0/24", DefaultTarget: "blocked"},
	models.SegmentBrowse:  {Subnet: "10.100.3.0/24", DefaultTarget: "direct", AllowDirect: true},
	models.SegmentDev:     {Subnet: "10.100.4.0/24", DefaultTarget: "blocked", AllowDirect: true},
}

// DefaultIPTablesRule marks packets from the segment subnet with its table id.
func DefaultIPTablesRule() *IPTablesRule {
	return &IPTablesRule{
		Chain: "PREROUTING",
		Table: "mangle",
		Rule:  []string{"-s", "{{" + IPTABLES_TMPL_SUBNET + "}}", "-j", "MARK", "--set-mark", "{{" + IPTABLES_TMPL_FWMARK + "}}"},
	}
}

// DefaultConfig returns a complete configuration built only from defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every section and field left out of the configuration file.
// Missing segments are appended in table id order.
func (c *Config) ApplyDefaults() {
	if c.General == nil {
		c.General = &GeneralConfig{}
	}
	if c.General.StateDir == "" {
		c.General.StateDir = DefaultStateDir
	}
	if c.General.WANInterface == "" {
		c.General.WANInterface = DefaultWANInterface
	}
	if c.General.ManagementSubnet == "" {
		c.General.ManagementSubnet = DefaultManagementSubnet
	}
	if c.General.WireGuardDir == "" {
		c.General.WireGuardDir = DefaultWireGuardDir
	}
	if c.General.OpenVPNDir == "" {
		c.General.OpenVPNDir = DefaultOpenVPNDir
	}

	if c.Classifier == nil {
		c.Classifier = &ClassifierConfig{}
	}
	if c.Classifier.Backend == "" {
		c.Classifier.Backend = ClassifierBackendNftables
	}
	if c.Classifier.Backend == ClassifierBackendIPTables && len(c.Classifier.IPTablesRules) == 0 {
		c.Classifier.IPTablesRules = []*IPTablesRule{DefaultIPTablesRule()}
	}

	if c.Firewall == nil {
		c.Firewall = &FirewallConfig{}
	}
	if c.Firewall.TableName == "" {
		c.Firewall.TableName = DefaultFirewallTable
	}
	if len(c.Firewall.VPNInterfacePatterns) == 0 {
		c.Firewall.VPNInterfacePatterns = append([]string(nil), defaultVPNInterfacePatterns...)
	}

	for _, s := range models.Segments() {
		seg := c.Segment(s)
		def := defaultSegments[s]
		if seg == nil {
			seg = &SegmentConfig{Name: string(s), AllowDirect: def.AllowDirect}
			c.Segments = append(c.Segments, seg)
		}
		if seg.Subnet == "" {
			seg.Subnet = def.Subnet
		}
		if seg.DefaultTarget == "" {
			seg.DefaultTarget = def.DefaultTarget
		}
	}

	for _, t := range c.Tunnels {
		if t.Kind == "" {
			t.Kind = TunnelKindWireGuard
		}
	}
}
