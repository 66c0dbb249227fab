package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/keyring"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

// keysAddCmd represents the add command for creating a new key
var keysAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new key",
	Long: `Add a new key with the given name.
This command will generate a new mnemonic and derive a secp256k1 key pair from it.
The generated key pair will be stored in the keyring.

Example:
  entrynode keys add mykey`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logtrace.CtxWithCorrelationID(cmd.Context(), "keys-add")

		kr, err := initKeyringFromConfig()
		if err != nil {
			return err
		}
		keyName, err := keyNameArg(args)
		if err != nil {
			return err
		}

		mnemonic, info, err := keyring.CreateNewAccount(kr, keyName, keyring.DefaultEntropySize)
		if err != nil {
			logtrace.Error(ctx, "Failed to create new account", logtrace.Fields{"key_name": keyName, logtrace.FieldError: err.Error()})
			return fmt.Errorf("failed to create new account: %w", err)
		}
		pub, err := keyring.PublicKeyHex(kr, info.Name)
		if err != nil {
			return err
		}

		logtrace.Info(ctx, "Key generated successfully", logtrace.Fields{"key_name": info.Name})

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Key generated successfully!")
		fmt.Fprintf(out, "- Name: %s\n", info.Name)
		fmt.Fprintf(out, "- Public key: %s\n", pub)
		fmt.Fprintf(out, "- Mnemonic: %s\n", mnemonic)
		fmt.Fprintln(out, "\nIMPORTANT: Write down the mnemonic and keep it in a safe place.")
		fmt.Fprintln(out, "The mnemonic is the only way to recover your key.")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysAddCmd)
}
