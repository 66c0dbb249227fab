package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/keyring"
)

// keysListCmd lists the keys in the keyring
var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, err := initKeyringFromConfig()
		if err != nil {
			return err
		}
		records, err := kr.List()
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No keys found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPUBLIC KEY")
		for _, rec := range records {
			pub, err := keyring.PublicKeyHex(kr, rec.Name)
			if err != nil {
				pub = "<" + err.Error() + ">"
			}
			fmt.Fprintf(w, "%s\t%s\n", rec.Name, pub)
		}
		return w.Flush()
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd)
}
