package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/keyring"
)

var signKeyName string

// keysSignCmd signs an entry name with a keyring key
var keysSignCmd = &cobra.Command{
	Use:   "sign <entry-name>",
	Short: "Sign an entry name for writing",
	Long: `Sign the write authorization for an entry name with a keyring key.
The printed public key and signature are the values a put request carries.

Example:
  entrynode keys sign my-entry --key-name mykey`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, err := initKeyringFromConfig()
		if err != nil {
			return err
		}
		keyName, err := keyNameArg([]string{signKeyName})
		if err != nil {
			return err
		}

		pub, sig, err := keyring.SignEntryName(kr, keyName, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\nSignature: %s\n", pub, sig)
		return nil
	},
}

func init() {
	keysSignCmd.Flags().StringVar(&signKeyName, "key-name", "", "key to sign with (defaults to node.key_name)")
	keysCmd.AddCommand(keysSignCmd)
}
