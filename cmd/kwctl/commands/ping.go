package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the service answers",
	Long: `Ping connects to the keywarden service, starting it if necessary, and
performs one round trip.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dial()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Ping(); err != nil {
			return err
		}
		fmt.Println("service is up")
		return nil
	},
}
