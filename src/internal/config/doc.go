// Package config handles configuration file parsing and validation for uplinkctl.
//
// The configuration file is TOML and defines:
//   - General settings (assignment state directory, WAN interface, management subnet)
//   - The packet classifier backend and its iptables rule templates
//   - Static inputs of the generated firewall ruleset
//   - The four segments with their subnets and default targets
//   - Statically configured VPN tunnels
//
// Every section is optional. Anything left out is filled from built-in
// defaults, so an empty file describes a working router:
//
//	cfg, err := config.LoadConfig("/etc/uplinkctl/uplinkctl.toml")
//	if err != nil {
//	    log.Fatalf("%v", err)
//	}
//	if err := cfg.ValidateConfig(); err != nil {
//	    log.Fatalf("%v", err)
//	}
//
// Segment table ids are not configurable. They are fixed by the models package.
package config
