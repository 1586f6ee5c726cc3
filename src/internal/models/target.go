package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/routervm/uplinkctl/src/internal/errors"
)

// TargetKind discriminates the Target union.
type TargetKind uint8

const (
	TargetBlocked TargetKind = iota + 1
	TargetDirect
	TargetVPN
)

const (
	tokenBlocked = "blocked"
	tokenDirect  = "direct"
)

// VPN names must be usable as a Linux interface name (IFNAMSIZ-1 = 15).
var vpnNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,14}$`)

// Target is the uplink a segment's egress traffic is sent to:
// blocked, direct WAN, or a named VPN. The zero value is invalid.
type Target struct {
	kind TargetKind
	vpn  string
}

// Blocked returns the fail-closed target.
func Blocked() Target {
	return Target{kind: TargetBlocked}
}

// Direct returns the WAN target.
func Direct() Target {
	return Target{kind: TargetDirect}
}

// VPN returns a target for the named tunnel.
func VPN(name string) (Target, error) {
	if err := ValidateVPNName(name); err != nil {
		return Target{}, err
	}
	return Target{kind: TargetVPN, vpn: name}, nil
}

// ParseTarget parses the canonical string form. Anything that is neither
// "blocked", "direct" nor a valid VPN name is rejected.
func ParseTarget(s string) (Target, error) {
	switch s {
	case tokenBlocked:
		return Blocked(), nil
	case tokenDirect:
		return Direct(), nil
	default:
		return VPN(s)
	}
}

// ValidateVPNName checks that name can be a VPN target.
func ValidateVPNName(name string) error {
	lower := strings.ToLower(name)
	if lower == tokenBlocked || lower == tokenDirect {
		return errors.NewConfigError(fmt.Sprintf("%q is reserved and cannot be used as a VPN name", name), nil)
	}
	if !vpnNameRegexp.MatchString(name) {
		return errors.NewConfigError(
			fmt.Sprintf("invalid target %q (expected blocked, direct or a VPN name matching %s)", name, vpnNameRegexp), nil)
	}
	return nil
}

// Kind returns the variant of the target.
func (t Target) Kind() TargetKind {
	return t.kind
}

// VPNName returns the tunnel name for VPN targets and "" otherwise.
func (t Target) VPNName() string {
	return t.vpn
}

// IsZero reports whether t is the invalid zero value.
func (t Target) IsZero() bool {
	return t.kind == 0
}

// String returns the canonical token stored in the assignment file.
func (t Target) String() string {
	switch t.kind {
	case TargetBlocked:
		return tokenBlocked
	case TargetDirect:
		return tokenDirect
	case TargetVPN:
		return t.vpn
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return nil, errors.NewInternalError("cannot marshal empty target", nil)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
