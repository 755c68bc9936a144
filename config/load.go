package config

import (
	configUtil "github.com/fox-one/pkg/config"
	"github.com/pkg/errors"
)

// Load reads the yaml file, when given, with MARGIN_* environment overrides,
// then fills defaults and validates.
func Load(cfgFile string, cfg *Config) error {
	configUtil.AutomaticLoadEnv("MARGIN")
	if cfgFile != "" {
		if err := configUtil.LoadYaml(cfgFile, cfg); err != nil {
			return errors.Wrapf(err, "load %s", cfgFile)
		}
	}

	cfg.defaults()
	return cfg.Validate()
}
