package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ApplyDefaults fills unspecified configuration fields with working values.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyIPCDefaults(&cfg.IPC)
	applyKeystoreDefaults(&cfg.Keystore, cfg.IPC.Lib)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9465
	}
}

func applyIPCDefaults(cfg *IPCConfig) {
	if cfg.Home == "" {
		cfg.Home = DefaultHomeDir()
	}
	if cfg.Lib == "" {
		cfg.Lib = filepath.Join(cfg.Home, "lib")
	}
	if cfg.Rendezvous == "" {
		cfg.Rendezvous = filepath.Join(cfg.Home, "keywardend.rendezvous")
	}
	if cfg.Executable == "" {
		cfg.Executable = defaultServiceExecutable()
	}
	if cfg.Policy == "" {
		cfg.Policy = "robust"
	}
}

func applyKeystoreDefaults(cfg *KeystoreConfig, libDir string) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(libDir, "keystore")
	}
}

// DefaultHomeDir returns the default service state directory.
func DefaultHomeDir() string {
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "keywarden")
		}
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "keywarden")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "keywarden")
	}
	return filepath.Join(homeDir, ".local", "share", "keywarden")
}

// DefaultConfigDir returns the directory searched for config.yaml.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "keywarden")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "keywarden")
	}
	return filepath.Join(homeDir, ".config", "keywarden")
}

// defaultServiceExecutable locates the keywardend binary: first next to the
// running executable, then on PATH, finally the bare name (the launcher will
// surface the spawn failure).
func defaultServiceExecutable() string {
	name := "keywardend"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}

	return name
}
