package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/go-playground/validator/v10"

	"github.com/routervm/uplinkctl/src/internal/models"
)

// ValidateConfig validates the entire configuration and returns all validation errors
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	if c.General == nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "general",
			Message:   "configuration must contain 'general' section",
		})
		return validationErrors
	}

	if err := validate.Struct(c.General); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "general", "")...)
	}

	if c.Classifier == nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "classifier",
			Message:   "configuration must contain 'classifier' section",
		})
	} else if err := validate.Struct(c.Classifier); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "classifier", "")...)
	}

	if c.Firewall == nil {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "firewall",
			Message:   "configuration must contain 'firewall' section",
		})
	} else if err := validate.Struct(c.Firewall); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err, "firewall", "")...)
	}

	validationErrors = append(validationErrors, c.validateSegments()...)
	validationErrors = append(validationErrors, c.validateTunnels()...)

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

func (c *Config) validateSegments() ValidationErrors {
	var validationErrors ValidationErrors

	seenNames := make(map[string]bool)
	type namedNet struct {
		name string
		net  *net.IPNet
	}
	var subnets []namedNet

	if _, mgmt, err := net.ParseCIDR(c.General.ManagementSubnet); err == nil {
		subnets = append(subnets, namedNet{name: "management", net: mgmt})
	}

	for i, seg := range c.Segments {
		itemName := seg.Name
		if itemName == "" {
			itemName = fmt.Sprintf("segment[%d]", i)
		}

		if err := validate.Struct(seg); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, fmt.Sprintf("segment.%d", i), itemName)...)
		}

		if seenNames[seg.Name] {
			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: "name",
				Message:   fmt.Sprintf("duplicate segment: %s", seg.Name),
			})
		}
		seenNames[seg.Name] = true

		_, ipnet, err := net.ParseCIDR(seg.Subnet)
		if err != nil {
			continue
		}
		for _, other := range subnets {
			if ipnet.Contains(other.net.IP) || other.net.Contains(ipnet.IP) {
				validationErrors = append(validationErrors, ValidationError{
					ItemName:  itemName,
					FieldPath: "subnet",
					Message:   fmt.Sprintf("subnet %s overlaps with %s (%s)", seg.Subnet, other.name, other.net),
				})
			}
		}
		subnets = append(subnets, namedNet{name: itemName, net: ipnet})
	}

	for _, s := range models.Segments() {
		if !seenNames[string(s)] {
			validationErrors = append(validationErrors, ValidationError{
				ItemName:  string(s),
				FieldPath: "segment",
				Message:   "segment is not configured",
			})
		}
	}

	return validationErrors
}

func (c *Config) validateTunnels() ValidationErrors {
	var validationErrors ValidationErrors
	seenNames := make(map[string]bool)

	for i, tun := range c.Tunnels {
		itemName := tun.Name
		if itemName == "" {
			itemName = fmt.Sprintf("tunnel[%d]", i)
		}

		if err := validate.Struct(tun); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, fmt.Sprintf("tunnel.%d", i), itemName)...)
		}

		if seenNames[tun.Name] {
			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: "name",
				Message:   fmt.Sprintf("duplicate tunnel name: %s", tun.Name),
			})
		}
		seenNames[tun.Name] = true

		if tun.Kind == TunnelKindWireGuard && tun.Address != "" && tun.PublicKey == "" {
			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: "public_key",
				Message:   "wireguard tunnel with an address must specify the peer public key",
			})
		}
	}

	return validationErrors
}

// convertValidatorErrors converts go-playground/validator errors to our ValidationError format
func convertValidatorErrors(err error, fieldPrefix string, itemName string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if e.Field() != "" {
				// e.Field() returns the TOML tag name because we registered TagNameFunc
				if fieldPrefix != "" {
					fieldPath = fieldPrefix + "." + e.Field()
				} else {
					fieldPath = e.Field()
				}
			}

			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: fieldPath,
				Message:   getValidationMessage(e),
			})
		}
	}

	return validationErrors
}
