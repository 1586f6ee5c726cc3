package domain

import (
	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/firewall"
	"github.com/routervm/uplinkctl/src/internal/networking"
	"github.com/routervm/uplinkctl/src/internal/shell"
	"github.com/routervm/uplinkctl/src/internal/tunnel"
)

// AppDependencies is a dependency injection container holding every
// component that touches the host.
//
// Usage:
//
//	deps := domain.NewDefaultDependencies()
//	svc := service.NewControlService(cfg, deps)
type AppDependencies struct {
	routingBackend  networking.RoutingBackend
	commandRunner   shell.CommandRunner
	firewallChecker FirewallChecker
	classifier      ClassifierFactory
	wireGuard       tunnel.WireGuardClientFactory
}

// NewDefaultDependencies creates the production dependencies: netlink for
// routes and rules, exec for nft and systemctl, netlink nftables for
// ruleset checks and the system iptables for the classifier.
func NewDefaultDependencies() *AppDependencies {
	return &AppDependencies{
		routingBackend:  networking.NewNetlinkBackend(),
		commandRunner:   shell.NewExecRunner(),
		firewallChecker: firewall.NewChecker(),
		classifier: func(cfg *config.Config) (ClassifierRules, error) {
			rules, err := networking.NewIPTableRules(cfg)
			if err != nil {
				return nil, err
			}
			return rules, nil
		},
	}
}

// NewTestDependencies creates a container from the given implementations.
// A nil checker or classifier makes the operations needing them fail with
// DependencyUnavailable.
func NewTestDependencies(
	backend networking.RoutingBackend,
	runner shell.CommandRunner,
	checker FirewallChecker,
	classifier ClassifierFactory,
) *AppDependencies {
	return &AppDependencies{
		routingBackend:  backend,
		commandRunner:   runner,
		firewallChecker: checker,
		classifier:      classifier,
	}
}

// WithWireGuardClient sets the factory used to inspect WireGuard devices.
func (d *AppDependencies) WithWireGuardClient(factory tunnel.WireGuardClientFactory) *AppDependencies {
	d.wireGuard = factory
	return d
}

// RoutingBackend returns the kernel routing backend.
func (d *AppDependencies) RoutingBackend() networking.RoutingBackend {
	return d.routingBackend
}

// CommandRunner returns the subprocess runner.
func (d *AppDependencies) CommandRunner() shell.CommandRunner {
	return d.commandRunner
}

// FirewallChecker returns the nftables ruleset checker, or nil.
func (d *AppDependencies) FirewallChecker() FirewallChecker {
	return d.firewallChecker
}

// Classifier returns the iptables classifier factory, or nil.
func (d *AppDependencies) Classifier() ClassifierFactory {
	return d.classifier
}

// WireGuardClient returns the WireGuard client factory, or nil for the default.
func (d *AppDependencies) WireGuardClient() tunnel.WireGuardClientFactory {
	return d.wireGuard
}
