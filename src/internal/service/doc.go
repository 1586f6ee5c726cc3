// Package service provides the business logic shared by the CLI commands and
// the HTTP API.
//
// The service layer sits between the commands and the domain managers
// (store, routing, tunnels, firewall), coordinating operations across them
// while keeping commands simple.
//
// # Key Services
//
// ControlService: assign, status, list, connect and disconnect, plus
// activation, self-check and undo of the routing setup.
//
// ValidationService: host level checks the configuration validator cannot
// do, such as whether the configured interfaces exist.
//
// # Example Usage
//
//	deps := domain.NewDefaultDependencies()
//	svc := service.NewControlService(cfg, deps)
//
//	if _, err := svc.Assign("office", "mullvad"); err != nil {
//	    log.Fatalf("%v", err)
//	}
package service
