// Package log provides simple leveled logging for uplinkctl.
//
// Four levels are supported: DEBUG (only with -verbose), INFO, WARN and ERROR.
// ERROR always goes to stderr; the rest goes to stdout unless SetForceStdErr
// is enabled, which keeps stdout clean for commands that print artifacts.
//
//	log.Infof("[%s] Added default route via %s", segment, iface)
//	log.Warnf("[%s] VPN %s is not up, table left empty", segment, name)
//
// Fatalf logs at ERROR level and exits with status 1, which is the exit code
// the CLI uses for every validation or resolution failure.
package log
