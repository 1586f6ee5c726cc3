package service

import (
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/networking"
)

// ValidationService checks the configuration against the host.
//
// The configuration validator only looks at the file; this service checks
// what can only be known at runtime, such as interface presence.
type ValidationService struct {
	prober networking.InterfaceProber
}

// NewValidationService creates a new validation service.
func NewValidationService(prober networking.InterfaceProber) *ValidationService {
	return &ValidationService{prober: prober}
}

// ValidateHost runs all host validators and returns the first error encountered.
func (v *ValidationService) ValidateHost(cfg *config.Config) error {
	validators := []func(*config.Config) error{
		v.validateWANInterface,
		v.validateSegmentInterfaces,
	}

	for _, validator := range validators {
		if err := validator(cfg); err != nil {
			return err
		}
	}

	return nil
}

// validateWANInterface checks the configured WAN interface exists.
//
// A missing WAN only degrades direct targets (they still work through the
// main table default route), so callers usually log this as a warning.
func (v *ValidationService) validateWANInterface(cfg *config.Config) error {
	name := cfg.General.WANInterface
	exists, err := v.prober.InterfaceExists(name)
	if err != nil {
		return errors.NewDependencyError(fmt.Sprintf("failed to probe interface %s", name), err)
	}
	if !exists {
		return errors.NewNotFoundError(fmt.Sprintf("WAN interface %s does not exist", name), nil)
	}
	return nil
}

// validateSegmentInterfaces checks the bridge of every segment that names one.
func (v *ValidationService) validateSegmentInterfaces(cfg *config.Config) error {
	for _, seg := range cfg.Segments {
		if seg.Interface == "" {
			continue
		}

		exists, err := v.prober.InterfaceExists(seg.Interface)
		if err != nil {
			return errors.NewDependencyError(fmt.Sprintf("failed to probe interface %s", seg.Interface), err)
		}
		if !exists {
			return errors.NewNotFoundError(
				fmt.Sprintf("interface %s of segment %s does not exist", seg.Interface, seg.Name), nil)
		}
	}

	return nil
}
