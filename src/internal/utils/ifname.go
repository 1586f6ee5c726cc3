package utils

import "path/filepath"

// MatchInterfacePattern reports whether an interface name matches a pattern
// such as "wg-*" or "tun*". A pattern without wildcard must match exactly.
func MatchInterfacePattern(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// MatchAnyInterfacePattern reports whether name matches at least one pattern.
func MatchAnyInterfacePattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchInterfacePattern(p, name) {
			return true
		}
	}
	return false
}
