package firewall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/shell"
	"github.com/routervm/uplinkctl/src/internal/utils"
)

const nft = "nft"

// Applier loads nft scripts into the kernel.
type Applier struct {
	runner shell.CommandRunner
}

func NewApplier(runner shell.CommandRunner) *Applier {
	return &Applier{runner: runner}
}

// Validate checks a script without applying it.
func (a *Applier) Validate(ctx context.Context, script string) error {
	if _, err := a.runner.RunInput(ctx, script, nft, "-c", "-f", "-"); err != nil {
		return errors.NewDependencyError("nft rejected the generated ruleset", err)
	}
	return nil
}

// Apply validates then applies a script. nft applies a script as one
// transaction, so a failure leaves the previous ruleset in place.
func (a *Applier) Apply(ctx context.Context, script string) error {
	if err := a.Validate(ctx, script); err != nil {
		return err
	}
	if _, err := a.runner.RunInput(ctx, script, nft, "-f", "-"); err != nil {
		return errors.NewDependencyError("failed to apply ruleset", err)
	}
	log.Infof("Firewall ruleset applied")
	return nil
}

// WriteArtifact stores the rendered script at path.
func WriteArtifact(path, script string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create directory for %s", path), err)
	}
	if err := utils.WriteFileAtomic(path, []byte(script), 0644); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to write ruleset to %s", path), err)
	}
	log.Debugf("Firewall ruleset written to %s", path)
	return nil
}
