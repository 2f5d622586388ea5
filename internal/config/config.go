// Package config loads passfs settings.
//
// Sources, from highest to lowest precedence:
//  1. Command-line flags
//  2. Environment variables (PASSFS_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete passfs configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Mount   MountConfig   `mapstructure:"mount"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level logged, normalized to upper case.
	Level string `mapstructure:"level" validate:"required,oneof=ERROR WARN INFO DEBUG TRACE"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// MountConfig describes what is exposed and where.
type MountConfig struct {
	// Point is the directory the filesystem is mounted on.
	Point string `mapstructure:"point" validate:"required"`

	// Source is the directory exposed through the mount.
	Source string `mapstructure:"source" validate:"required"`

	// FSName is reported as the filesystem name and subtype.
	FSName string `mapstructure:"fs_name" validate:"required,alphanum"`

	AllowOther bool `mapstructure:"allow_other"`
	ReadOnly   bool `mapstructure:"read_only"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// Load reads the configuration file at configPath, if any, applies
// environment overrides and the flags set in flags, then fills defaults
// and validates the result. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment lookup and the config file. Every key
// is given a default so that AutomaticEnv can see it during Unmarshal.
func setupViper(v *viper.Viper, configPath string) {
	// Example: PASSFS_MOUNT_SOURCE=/srv/data
	v.SetEnvPrefix("PASSFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

// readConfigFile reads the file given on the command line, if any.
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
