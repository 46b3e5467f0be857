package commands

import (
	"github.com/marmos91/keywarden/internal/logger"
	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Start the service as a long-lived daemon",
	Long: `Bootstrap checks whether a keywarden service is already registered at the
rendezvous point. If one is running, bootstrap exits immediately; otherwise
this process becomes the registered server and serves until killed.

Examples:
  # Become the keywarden service for the default home directory
  keywardend bootstrap

  # Serve a custom home directory
  keywardend bootstrap --home /srv/keywarden --lib /srv/keywarden/lib`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	descriptor, store, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	descriptor.Metrics = setupMetrics(cfg)

	handle, err := descriptor.Bootstrap()
	if err != nil {
		return err
	}
	if handle == nil {
		logger.Info("service already running", "rendezvous", descriptor.Rendezvous())
		return nil
	}

	return handle.Wait()
}
