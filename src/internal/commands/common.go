package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/domain"
	"github.com/routervm/uplinkctl/src/internal/service"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	Verbose    bool

	// Stdout receives command output. Defaults to os.Stdout.
	Stdout io.Writer
	// Deps overrides the production dependencies.
	Deps *domain.AppDependencies
}

func (c *AppContext) stdout() io.Writer {
	if c.Stdout == nil {
		return os.Stdout
	}
	return c.Stdout
}

func (c *AppContext) dependencies() *domain.AppDependencies {
	if c.Deps == nil {
		c.Deps = domain.NewDefaultDependencies()
	}
	return c.Deps
}

// loadAndValidateConfigOrFail loads configuration from file and validates it.
func loadAndValidateConfigOrFail(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newControlService loads the configuration and builds the control service.
func newControlService(ctx *AppContext) (*service.ControlService, error) {
	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return nil, err
	}
	return service.NewControlService(cfg, ctx.dependencies()), nil
}

// expectArgs checks the number of positional arguments of a command.
func expectArgs(name string, args []string, usage string, n int) error {
	if len(args) != n {
		return fmt.Errorf("usage: uplinkctl %s %s", name, usage)
	}
	return nil
}
