package commands

import (
	"errors"
	"fmt"

	"github.com/marmos91/keywarden/pkg/ipc"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the rendezvous file advertises",
	Long: `Status inspects the rendezvous file without starting anything. It reports
whether a service is registered and at which address. The rendezvous lock is
taken non-blocking; a busy lock means some client is connecting right now.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		file, err := ipc.TryOpenRendezvous(cfg.IPC.Rendezvous)
		if errors.Is(err, ipc.ErrLockUnavailable) {
			fmt.Println("rendezvous is busy (another client is connecting)")
			return nil
		}
		if err != nil {
			return err
		}
		defer file.Close()

		_, rest, ok, err := file.Read()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no service registered")
			return nil
		}
		fmt.Printf("service registered at %s\n", rest)
		return nil
	},
}
