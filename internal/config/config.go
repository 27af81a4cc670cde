// Package config loads tool configuration from an optional config file
// and DEVSTACK_* environment variables, with sensible defaults for a
// checkout-local layout.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all tool configuration.
type Config struct {
	Overlays  OverlaysConfig `mapstructure:"overlays"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Output    OutputConfig   `mapstructure:"output"`
}

// OverlaysConfig locates the overlay library.
type OverlaysConfig struct {
	// Dir is the overlay root: one subdirectory per overlay, plus a
	// shared/ directory for imported fragments.
	Dir string `mapstructure:"dir"`
}

// TemplatesConfig locates the base templates.
type TemplatesConfig struct {
	// Dir is the template root: one subdirectory per base template.
	Dir string `mapstructure:"dir"`
}

// OutputConfig controls where generated trees land.
type OutputConfig struct {
	// Dir is the default destination directory for generated trees.
	Dir string `mapstructure:"dir"`

	// PortOffset is the default offset added to every service port.
	// Overridable per generation with --port-offset.
	PortOffset int `mapstructure:"port_offset"`
}

// Load reads configuration from an optional file plus the environment.
// An empty configPath means defaults and environment only; a missing
// file at an explicit path is tolerated, a malformed one is not.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("overlays.dir", "./overlays")
	v.SetDefault("templates.dir", "./templates")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.port_offset", 0)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a parse failure is fatal; absence falls back to defaults.
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("DEVSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
