// Package domain defines the interfaces and the dependency container shared
// by the service layer, the CLI commands and the HTTP API.
//
// Production code wires the netlink, iptables and nftables implementations;
// tests replace any of them with the fakes from the mocks package.
package domain

import (
	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/firewall"
)

// ClassifierRules installs and removes the packet classifier rules of the
// iptables backend.
type ClassifierRules interface {
	// AddIfNotExists appends every rule missing from its chain.
	AddIfNotExists() error

	// DelIfExists deletes every rule present in its chain.
	DelIfExists() error

	// CheckRulesExists reports the presence of every rendered rule.
	CheckRulesExists() (map[*config.IPTablesRule]bool, error)
}

// ClassifierFactory renders the classifier rules of a configuration.
type ClassifierFactory func(cfg *config.Config) (ClassifierRules, error)

// FirewallChecker reads the loaded nftables ruleset.
type FirewallChecker interface {
	Check(table string, chains []string) (*firewall.CheckResult, error)
}
