// Package shell runs external OS tools (systemctl, nft).
package shell

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
)

// CommandRunner executes external commands.
type CommandRunner interface {
	// Run executes a command and returns its stdout.
	Run(ctx context.Context, name string, args ...string) (string, error)
	// RunInput executes a command feeding input on stdin.
	RunInput(ctx context.Context, input string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.run(ctx, nil, name, args...)
}

func (r *ExecRunner) RunInput(ctx context.Context, input string, name string, args ...string) (string, error) {
	return r.run(ctx, strings.NewReader(input), name, args...)
}

func (r *ExecRunner) run(ctx context.Context, stdin *strings.Reader, name string, args ...string) (string, error) {
	log.Debugf("Running %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return "", errors.NewDependencyError(fmt.Sprintf("%s is not installed", name), err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.String(), errors.NewDependencyError(fmt.Sprintf("%s %s failed: %s", name, strings.Join(args, " "), msg), err)
	}

	return stdout.String(), nil
}
