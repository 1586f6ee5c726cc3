package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	uerrors "github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
)

const DefaultConfigPath = "/etc/uplinkctl/uplinkctl.toml"

// Variables available in classifier iptables rule templates.
const (
	IPTABLES_TMPL_SEGMENT   = "segment"
	IPTABLES_TMPL_SUBNET    = "subnet"
	IPTABLES_TMPL_FWMARK    = "fwmark"
	IPTABLES_TMPL_TABLE     = "table"
	IPTABLES_TMPL_INTERFACE = "interface"
)

func LoadConfig(configPath string) (*Config, error) {
	configFile := filepath.Clean(configPath)

	if !filepath.IsAbs(configFile) {
		if path, err := filepath.Abs(configFile); err != nil {
			return nil, uerrors.NewConfigError("failed to get absolute path", err)
		} else {
			configFile = path
		}
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, uerrors.NewConfigError(fmt.Sprintf("configuration file not found: %s", configFile), nil)
		}
		return nil, uerrors.NewConfigError("failed to read config file", err)
	}

	cfg, err := ParseConfig(content)
	if err != nil {
		return nil, err
	}
	cfg._absConfigFilePath = configFile

	log.Debugf("Configuration file path: %s", configFile)
	log.Debugf("Assignment state directory: %s", cfg.GetAbsStateDir())

	return cfg, nil
}

// ParseConfig decodes TOML content and fills in defaults for everything left out.
func ParseConfig(content []byte) (*Config, error) {
	var config Config
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf("%s", derr.String())
			row, col := derr.Position()
			return nil, uerrors.NewConfigError(fmt.Sprintf("failed to parse config file at line %d, column %d", row, col), err)
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, uerrors.NewConfigError("unknown fields in config file", errors.New(serr.String()))
		}
		return nil, uerrors.NewConfigError("failed to parse config file", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

func (c *Config) SerializeConfig() (*bytes.Buffer, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return &buf, nil
}
