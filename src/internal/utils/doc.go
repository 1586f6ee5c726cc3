// Package utils provides small helpers shared across uplinkctl.
//
//   - File utilities: atomic replace of small state files, safe closing
//   - Interface name patterns: glob matching for names like "wg-*"
//
// Atomic write of an assignment record:
//
//	err := utils.WriteFileAtomic("/var/lib/uplinkctl/assignments/office", []byte("mullvad\n"), 0644)
package utils
