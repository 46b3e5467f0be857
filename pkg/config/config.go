// Package config loads and validates the keywarden configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config captures the static configuration of the keywarden binaries.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (KEYWARDEN_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// IPC configures service discovery and bootstrap
	IPC IPCConfig `mapstructure:"ipc" yaml:"ipc"`

	// Keystore configures the key storage backend
	Keystore KeystoreConfig `mapstructure:"keystore" yaml:"keystore"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9465
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// IPCConfig configures service discovery and bootstrap.
type IPCConfig struct {
	// Home is the service state directory.
	// Default: $XDG_DATA_HOME/keywarden (platform equivalent elsewhere)
	Home string `mapstructure:"home" yaml:"home"`

	// Lib is the directory holding service data files.
	// Default: <home>/lib
	Lib string `mapstructure:"lib" yaml:"lib"`

	// Rendezvous is the pathname of the service rendezvous file.
	// Default: <home>/keywardend.rendezvous
	Rendezvous string `mapstructure:"rendezvous" yaml:"rendezvous"`

	// Executable is the service binary forked for on-demand starts.
	// Default: a keywardend binary next to the current executable, falling
	// back to PATH lookup.
	Executable string `mapstructure:"executable" yaml:"executable"`

	// Policy selects the launch strategy
	// Valid values: robust, external, in-process
	Policy string `mapstructure:"policy" validate:"omitempty,oneof=robust external in-process internal" yaml:"policy"`

	// Ephemeral marks a throwaway environment
	Ephemeral bool `mapstructure:"ephemeral" yaml:"ephemeral"`
}

// KeystoreConfig configures the key storage backend.
type KeystoreConfig struct {
	// Path is the BadgerDB directory
	// Default: <lib>/keystore
	Path string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
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

// Validate checks the configuration against its declared constraints.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes the configuration to path in YAML format. The file is written
// with owner-only permissions since it may name sensitive locations.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable and config file handling.
// Environment variables use the KEYWARDEN_ prefix and underscores,
// e.g. KEYWARDEN_LOGGING_LEVEL=DEBUG or KEYWARDEN_IPC_POLICY=external.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("KEYWARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, and Unmarshal
	// only visits known keys; bind every field so env overrides reach it.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.port",
		"ipc.home", "ipc.lib", "ipc.rendezvous", "ipc.executable", "ipc.policy", "ipc.ephemeral",
		"keystore.path",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is fine; the defaults carry a working setup.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
