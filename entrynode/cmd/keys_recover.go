package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/keyring"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

// keysRecoverCmd represents the recover command for recovering a key from mnemonic
var keysRecoverCmd = &cobra.Command{
	Use:   "recover [name]",
	Short: "Recover a key using a mnemonic",
	Long: `Recover a key using a BIP39 mnemonic.
This command will derive a key pair from the provided mnemonic and store it in the keyring.
The mnemonic is read from standard input.

Example:
  entrynode keys recover mykey`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logtrace.CtxWithCorrelationID(cmd.Context(), "keys-recover")

		kr, err := initKeyringFromConfig()
		if err != nil {
			return err
		}
		keyName, err := keyNameArg(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, "Enter your mnemonic: ")
		mnemonic, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && mnemonic == "" {
			return fmt.Errorf("failed to read mnemonic: %w", err)
		}
		mnemonic = strings.Join(strings.Fields(mnemonic), " ")

		info, err := keyring.RecoverAccountFromMnemonic(kr, keyName, mnemonic)
		if err != nil {
			logtrace.Error(ctx, "Failed to recover account from mnemonic", logtrace.Fields{"key_name": keyName, logtrace.FieldError: err.Error()})
			return fmt.Errorf("failed to recover account: %w", err)
		}
		pub, err := keyring.PublicKeyHex(kr, info.Name)
		if err != nil {
			return err
		}

		logtrace.Info(ctx, "Key recovered successfully", logtrace.Fields{"key_name": info.Name})

		fmt.Fprintln(out, "\nKey recovered successfully!")
		fmt.Fprintf(out, "- Name: %s\n", info.Name)
		fmt.Fprintf(out, "- Public key: %s\n", pub)
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysRecoverCmd)
}
