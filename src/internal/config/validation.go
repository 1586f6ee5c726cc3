package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/routervm/uplinkctl/src/internal/models"
)

var (
	ifnameRegexp        = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@-]{0,14}$`)
	ifnamePatternRegexp = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,13}\*?$`)
	nftIdentifierRegexp = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,31}$`)
)

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must have at least %s item(s)", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "ip":
		return "must be a valid IP address"
	case "cidr":
		return "must be a valid CIDR"
	case "cidrv4":
		return "must be a valid IPv4 CIDR (e.g. 10.100.1.0/24)"
	case "base64":
		return "must be base64 encoded"
	case "hostname_port":
		return "must be in format 'host:port'"
	case "segment_name":
		return "must be one of: pentest, office, browse, dev"
	case "target":
		return "must be 'blocked', 'direct' or a VPN name [a-zA-Z0-9_.-] (max 15 characters)"
	case "vpn_name":
		return "must be a VPN name [a-zA-Z0-9_.-] (max 15 characters), not 'blocked' or 'direct'"
	case "ifname":
		return "must be a valid interface name (max 15 characters)"
	case "ifname_pattern":
		return "must be an interface name, optionally ending with '*'"
	case "nft_identifier":
		return "must start with a letter and consist only of letters, digits and underscores"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	ItemName  string // For segments/tunnels: the name of the item (e.g., "office", "mullvad")
	FieldPath string // Dot-notation field path (e.g., "general.wan_interface", "segment.1.subnet")
	Message   string // Human-readable error message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		if err.ItemName != "" {
			sb.WriteString(fmt.Sprintf("  %d. [%s] %s: %s\n", i+1, err.ItemName, err.FieldPath, err.Message))
		} else {
			sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.FieldPath, err.Message))
		}
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	for tag, fn := range map[string]validator.Func{
		"segment_name":   validateSegmentName,
		"target":         validateTarget,
		"vpn_name":       validateVPNName,
		"ifname":         validateIfname,
		"ifname_pattern": validateIfnamePattern,
		"nft_identifier": validateNftIdentifier,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}

	// Register function to get field name from "toml" tag
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateSegmentName(fl validator.FieldLevel) bool {
	return models.Segment(fl.Field().String()).Valid()
}

func validateTarget(fl validator.FieldLevel) bool {
	_, err := models.ParseTarget(fl.Field().String())
	return err == nil
}

func validateVPNName(fl validator.FieldLevel) bool {
	return models.ValidateVPNName(fl.Field().String()) == nil
}

func validateIfname(fl validator.FieldLevel) bool {
	return ifnameRegexp.MatchString(fl.Field().String())
}

func validateIfnamePattern(fl validator.FieldLevel) bool {
	return ifnamePatternRegexp.MatchString(fl.Field().String())
}

func validateNftIdentifier(fl validator.FieldLevel) bool {
	return nftIdentifierRegexp.MatchString(fl.Field().String())
}
