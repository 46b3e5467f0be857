package commands

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/keywarden/internal/logger"
	"github.com/marmos91/keywarden/internal/protocol/kwire"
	"github.com/marmos91/keywarden/pkg/config"
	"github.com/marmos91/keywarden/pkg/ipc"
	"github.com/marmos91/keywarden/pkg/keystore"
)

// loadConfig loads configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if homeDir != "" {
		cfg.IPC.Home = homeDir
		cfg.IPC.Lib = filepath.Join(homeDir, "lib")
		cfg.IPC.Rendezvous = filepath.Join(homeDir, "keywardend.rendezvous")
		cfg.Keystore.Path = filepath.Join(cfg.IPC.Lib, "keystore")
	}
	if policyName != "" {
		cfg.IPC.Policy = policyName
	}
	if executable != "" {
		cfg.IPC.Executable = executable
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDescriptor builds the service descriptor for the configured context.
//
// The handler factory only runs if the launch policy ends up serving
// in-process, in which case this client process hosts the keystore itself.
func newDescriptor(cfg *config.Config) (*ipc.Descriptor, error) {
	policy, err := ipc.ParsePolicy(cfg.IPC.Policy)
	if err != nil {
		return nil, err
	}

	ctx := ipc.Context{
		Home:      cfg.IPC.Home,
		Lib:       cfg.IPC.Lib,
		Ephemeral: cfg.IPC.Ephemeral,
		Policy:    policy,
	}

	factory := func(d *ipc.Descriptor) (ipc.Handler, error) {
		store, err := keystore.Open(cfg.Keystore.Path, cfg.IPC.Ephemeral)
		if err != nil {
			return nil, err
		}
		return &kwire.ServiceHandler{Store: store}, nil
	}

	return ipc.NewDescriptor(ctx, cfg.IPC.Rendezvous, cfg.IPC.Executable, factory), nil
}

// dial connects to the service, starting it if necessary, and wraps the
// session in a protocol client.
func dial() (*kwire.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	descriptor, err := newDescriptor(cfg)
	if err != nil {
		return nil, err
	}

	session, err := descriptor.Connect()
	if err != nil {
		return nil, fmt.Errorf("connecting to keywarden service: %w", err)
	}

	return kwire.NewClient(session), nil
}
