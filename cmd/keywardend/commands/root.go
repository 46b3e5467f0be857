// Package commands implements the CLI of the keywarden service daemon.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/marmos91/keywarden/internal/logger"
	"github.com/marmos91/keywarden/pkg/config"
	"github.com/marmos91/keywarden/pkg/ipc"
	"github.com/spf13/cobra"

	// Import prometheus metrics to register constructors
	_ "github.com/marmos91/keywarden/pkg/metrics/prometheus"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configFile   string
	homeDir      string
	libDir       string
	ephemeralArg string
)

// rootCmd is the service entry point. Clients fork this binary as
//
//	keywardend --home <HOMEDIR> --lib <LIBDIR> --ephemeral true|false
//
// with the listening socket inherited as file descriptor 0 (Unix) or via
// the SOCKET environment variable (Windows). Any deviation from that
// command line is a usage error.
var rootCmd = &cobra.Command{
	Use:   "keywardend --home <HOMEDIR> --lib <LIBDIR> --ephemeral true|false",
	Short: "keywarden key management service",
	Long: `keywardend is the keywarden key management service.

It is normally started on demand by a client, with a pre-bound listening
socket inherited across the process boundary. Run "keywardend bootstrap" to
start it by hand as a long-lived daemon instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("%w: unexpected argument %q", ipc.ErrUsage, args[0])
		}
		return nil
	},
	RunE: runServe,
}

// Execute runs the daemon CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Service state directory")
	rootCmd.PersistentFlags().StringVar(&libDir, "lib", "", "Service data directory")
	// A string rather than a bool flag: launchers pass the value as its own
	// argv element ("--ephemeral true"), which pflag bool flags don't accept.
	rootCmd.PersistentFlags().StringVar(&ephemeralArg, "ephemeral", "false", "Treat the environment as throwaway (true|false)")

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the file/env configuration and lets the bootstrap argv
// override the context fields.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if homeDir != "" {
		cfg.IPC.Home = homeDir
		cfg.IPC.Lib = filepath.Join(homeDir, "lib")
		cfg.IPC.Rendezvous = filepath.Join(homeDir, "keywardend.rendezvous")
	}
	if libDir != "" {
		cfg.IPC.Lib = libDir
	}
	if homeDir != "" || libDir != "" {
		cfg.Keystore.Path = filepath.Join(cfg.IPC.Lib, "keystore")
	}

	ephemeral, err := strconv.ParseBool(ephemeralArg)
	if err != nil {
		return nil, fmt.Errorf("%w: expected 'true' or 'false' for --ephemeral, got: %s",
			ipc.ErrUsage, ephemeralArg)
	}
	cfg.IPC.Ephemeral = ephemeral

	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if homeDir == "" || libDir == "" || !cmd.Flags().Changed("ephemeral") {
		return fmt.Errorf("%w: --home, --lib and --ephemeral are required", ipc.ErrUsage)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The forking client points stdout and stderr at the null device, so a
	// default stderr logger would be silent. Log into the home directory
	// unless the operator configured something explicit.
	if cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout" {
		if err := os.MkdirAll(cfg.IPC.Home, 0755); err != nil {
			return err
		}
		cfg.Logging.Output = filepath.Join(cfg.IPC.Home, "keywardend.log")
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
	server, err := ipc.NewServer(descriptor)
	if err != nil {
		return err
	}

	logger.Info("serving inherited listener",
		"home", cfg.IPC.Home, "lib", cfg.IPC.Lib, "ephemeral", cfg.IPC.Ephemeral)

	return server.Serve()
}
