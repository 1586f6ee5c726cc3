// Package firewall generates and applies the static nftables ruleset.
//
// The ruleset is computed from configuration only, never from the live
// assignments: VPN egress is accepted by interface name pattern and direct
// WAN egress only for segments with allow_direct. Reassigning a segment at
// runtime therefore does not change what the firewall lets through.
package firewall

import (
	"fmt"
	"net"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/networking"
	"github.com/routervm/uplinkctl/src/internal/utils"
)

const (
	family = "inet"

	ChainPrerouting  = "prerouting"
	ChainForward     = "forward"
	ChainPostrouting = "postrouting"
	ChainInput       = "input"
)

// Chains returns the chains the generated table contains for cfg.
func Chains(cfg *config.Config) []string {
	chains := []string{ChainForward, ChainPostrouting, ChainInput}
	if cfg.Classifier.Backend == config.ClassifierBackendNftables {
		chains = append([]string{ChainPrerouting}, chains...)
	}
	return chains
}

// Generate renders the ruleset as an nft script.
func Generate(cfg *config.Config) (string, error) {
	sb, err := BuildScript(cfg)
	if err != nil {
		return "", err
	}
	return sb.Build(), nil
}

// BuildScript builds the ruleset of cfg.
func BuildScript(cfg *config.Config) (*ScriptBuilder, error) {
	marks := networking.SegmentMarks(cfg)
	for _, m := range marks {
		if _, _, err := net.ParseCIDR(m.Subnet); err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("segment %s: invalid subnet %q", m.Segment, m.Subnet), err)
		}
	}
	if _, _, err := net.ParseCIDR(cfg.General.ManagementSubnet); err != nil {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid management subnet %q", cfg.General.ManagementSubnet), err)
	}

	sb := NewScriptBuilder(cfg.Firewall.TableName, family)
	sb.AddComment("Generated by uplinkctl. Do not edit, run \"uplinkctl firewall apply\" instead.")
	sb.RecreateTable()

	if cfg.Classifier.Backend == config.ClassifierBackendNftables {
		buildPrerouting(sb, marks)
	}
	buildForward(sb, cfg, marks)
	buildPostrouting(sb, cfg)
	buildInput(sb, cfg, marks)

	return sb, nil
}

// buildPrerouting marks traffic by source subnet with the segment's table id.
func buildPrerouting(sb *ScriptBuilder, marks []networking.SegmentMark) {
	sb.AddChain(ChainPrerouting, "filter", "prerouting", PriorityMangle, "")
	for _, m := range marks {
		sb.AddRule(ChainPrerouting, fmt.Sprintf("ip saddr %s meta mark set %d", m.Subnet, m.FwMark), string(m.Segment))
	}
}

func buildForward(sb *ScriptBuilder, cfg *config.Config, marks []networking.SegmentMark) {
	sb.AddChain(ChainForward, "filter", "forward", PriorityFilter, "drop")
	sb.AddRule(ChainForward, "ct state established,related accept")
	sb.AddRule(ChainForward, fmt.Sprintf("ip saddr %s drop", cfg.General.ManagementSubnet), "management never routes")

	if !cfg.Firewall.AllowInterSegment {
		for _, m := range marks {
			var others []string
			for _, o := range marks {
				if o.Segment != m.Segment {
					others = append(others, o.Subnet)
				}
			}
			if len(others) == 0 {
				continue
			}
			sb.AddRule(ChainForward, fmt.Sprintf("ip saddr %s ip daddr %s drop", m.Subnet, anonymousSet(others)),
				string(m.Segment)+": isolation")
		}
	}

	for _, m := range marks {
		match := fmt.Sprintf("ip saddr %s", m.Subnet)
		if m.Interface != "" {
			match = fmt.Sprintf("iifname %s %s", ifname(m.Interface), match)
		}
		for _, pattern := range cfg.Firewall.VPNInterfacePatterns {
			sb.AddRule(ChainForward, fmt.Sprintf("%s oifname %s accept", match, ifname(pattern)), string(m.Segment)+": vpn")
		}
		if seg := cfg.Segment(m.Segment); seg != nil && seg.AllowDirect {
			sb.AddRule(ChainForward, fmt.Sprintf("%s oifname %s accept", match, ifname(cfg.General.WANInterface)),
				string(m.Segment)+": direct")
		}
	}
}

// masqueradeInterfaces returns the VPN patterns, the configured tunnel
// names not already covered by a pattern, and the WAN interface.
func masqueradeInterfaces(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, pattern := range cfg.Firewall.VPNInterfacePatterns {
		add(pattern)
	}
	for _, t := range cfg.Tunnels {
		for _, candidate := range networking.VPNInterfaceCandidates(t.Name)[:2] {
			covered := false
			for _, pattern := range cfg.Firewall.VPNInterfacePatterns {
				if utils.MatchInterfacePattern(pattern, candidate) {
					covered = true
					break
				}
			}
			if !covered {
				add(candidate)
			}
		}
	}
	add(cfg.General.WANInterface)
	return out
}

func buildPostrouting(sb *ScriptBuilder, cfg *config.Config) {
	sb.AddChain(ChainPostrouting, "nat", "postrouting", PrioritySrcNAT, "")
	for _, iface := range masqueradeInterfaces(cfg) {
		sb.AddRule(ChainPostrouting, fmt.Sprintf("oifname %s masquerade", ifname(iface)))
	}
}

func buildInput(sb *ScriptBuilder, cfg *config.Config, marks []networking.SegmentMark) {
	sources := []string{cfg.General.ManagementSubnet}
	for _, m := range marks {
		sources = append(sources, m.Subnet)
	}

	sb.AddChain(ChainInput, "filter", "input", PriorityFilter, "drop")
	sb.AddRule(ChainInput, `iifname "lo" accept`)
	sb.AddRule(ChainInput, "ct state established,related accept")
	sb.AddRule(ChainInput, fmt.Sprintf("ip saddr %s accept", anonymousSet(sources)))
	sb.AddRule(ChainInput, "meta l4proto { icmp, ipv6-icmp } accept")
}
