package commands

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage stored keys",
}

var (
	putAlgorithm string
	putFile      string
	rmForce      bool
)

func init() {
	keyPutCmd.Flags().StringVar(&putAlgorithm, "algorithm", "", "Algorithm label for the key material")
	keyPutCmd.Flags().StringVar(&putFile, "file", "", "Read key material from this file instead of stdin")
	keyRmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Delete without confirmation")

	keyCmd.AddCommand(keyPutCmd)
	keyCmd.AddCommand(keyGetCmd)
	keyCmd.AddCommand(keyListCmd)
	keyCmd.AddCommand(keyRmCmd)
}

var keyPutCmd = &cobra.Command{
	Use:   "put <name>",
	Short: "Store key material under a name",
	Long: `Put stores key material under the given name, replacing any existing key.

The material is read from --file, or from stdin when --file is omitted:

  kwctl key put backup-signing --algorithm ed25519 --file signing.key
  head -c 64 /dev/urandom | kwctl key put scratch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		material, err := readMaterial()
		if err != nil {
			return err
		}

		client, err := dial()
		if err != nil {
			return err
		}
		defer client.Close()

		key, err := client.Put(args[0], putAlgorithm, material)
		if err != nil {
			return err
		}
		fmt.Printf("stored %q (id %s, %d bytes)\n", key.Name, key.ID, len(material))
		return nil
	},
}

var keyGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a stored key as base64",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dial()
		if err != nil {
			return err
		}
		defer client.Close()

		key, err := client.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key.Material))
		return nil
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dial()
		if err != nil {
			return err
		}
		defer client.Close()

		keys, err := client.List()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Algorithm", "ID", "Created"})
		for _, key := range keys {
			table.Append([]string{
				key.Name,
				key.Algorithm,
				key.ID,
				key.CreatedAtTime().Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var keyRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rmForce {
			prompt := promptui.Prompt{
				Label:     "Delete key " + strconv.Quote(args[0]),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				fmt.Println("aborted")
				return nil
			}
		}

		client, err := dial()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %q\n", args[0])
		return nil
	},
}

func readMaterial() ([]byte, error) {
	if putFile != "" {
		material, err := os.ReadFile(putFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", putFile, err)
		}
		return material, nil
	}

	material, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(material) == 0 {
		return nil, fmt.Errorf("no key material on stdin (use --file or pipe material in)")
	}
	return material, nil
}
