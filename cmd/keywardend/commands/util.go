package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/marmos91/keywarden/internal/logger"
	"github.com/marmos91/keywarden/internal/protocol/kwire"
	"github.com/marmos91/keywarden/pkg/config"
	"github.com/marmos91/keywarden/pkg/ipc"
	"github.com/marmos91/keywarden/pkg/keystore"
	"github.com/marmos91/keywarden/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// initLogger initializes the structured logger from configuration.
func initLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// buildService opens the keystore and builds the service descriptor around
// it. Ephemeral environments get an in-memory keystore.
func buildService(cfg *config.Config) (*ipc.Descriptor, *keystore.Store, error) {
	policy, err := ipc.ParsePolicy(cfg.IPC.Policy)
	if err != nil {
		return nil, nil, err
	}

	store, err := keystore.Open(cfg.Keystore.Path, cfg.IPC.Ephemeral)
	if err != nil {
		return nil, nil, err
	}

	ctx := ipc.Context{
		Home:      cfg.IPC.Home,
		Lib:       cfg.IPC.Lib,
		Ephemeral: cfg.IPC.Ephemeral,
		Policy:    policy,
	}

	executable, err := os.Executable()
	if err != nil {
		executable = cfg.IPC.Executable
	}

	factory := func(d *ipc.Descriptor) (ipc.Handler, error) {
		return &kwire.ServiceHandler{Store: store}, nil
	}

	return ipc.NewDescriptor(ctx, cfg.IPC.Rendezvous, executable, factory), store, nil
}

// setupMetrics wires the Prometheus registry and endpoint when enabled.
// Returns nil (zero overhead) otherwise.
func setupMetrics(cfg *config.Config) metrics.SessionMetrics {
	if !cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()

	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Metrics.Port)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		logger.Info("metrics endpoint listening", "address", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()

	return metrics.NewSessionMetrics()
}
