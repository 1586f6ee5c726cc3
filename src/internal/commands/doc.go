// Package commands implements CLI command handlers for uplinkctl.
//
// Each command implements the Runner interface and delegates business logic
// to service.ControlService.
//
// # Command Structure
//
// All commands follow a consistent pattern:
//   - Init(): Parse arguments, load the configuration and build the service
//   - Run(): Execute the command and print its result
//   - Name(): Return command name for routing
//
// # Available Commands
//
//   - assign: Route a segment via blocked, direct or a VPN
//   - status: Show every segment's target and state
//   - list, connect, disconnect: Tunnel lifecycle
//   - init: Activation at boot
//   - firewall: Render, apply or check the nftables ruleset
//   - self-check: Verify kernel state against configuration and store
//   - undo-routing: Remove all routing configuration
//   - serve: HTTP control API
//   - help: Command overview
//
// # Example Usage
//
//	cmd := commands.CreateAssignCommand()
//	ctx := &commands.AppContext{ConfigPath: "/etc/uplinkctl/uplinkctl.toml"}
//	if err := cmd.Init([]string{"office", "mullvad"}, ctx); err != nil {
//	    log.Fatalf("%v", err)
//	}
//	if err := cmd.Run(); err != nil {
//	    log.Fatalf("%v", err)
//	}
package commands
