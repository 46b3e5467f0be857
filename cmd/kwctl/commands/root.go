// Package commands implements the CLI commands for the kwctl client.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configFile string
	homeDir    string
	policyName string
	executable string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kwctl",
	Short: "keywarden control client",
	Long: `kwctl talks to the co-located keywarden service, starting it on demand.

The service is discovered through its rendezvous file. If no service is
running, kwctl starts one according to --policy: fork the keywardend
executable, serve from a worker inside this process, or (default) try the
fork and fall back to the worker.

Use "kwctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "Service state directory")
	rootCmd.PersistentFlags().StringVar(&policyName, "policy", "", "Launch policy (robust|external|in-process)")
	rootCmd.PersistentFlags().StringVar(&executable, "executable", "", "Path to the keywardend binary")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(versionCmd)
}
