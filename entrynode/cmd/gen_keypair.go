package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/signature"
)

// genKeypairCmd prints a fresh secp256k1 key pair
var genKeypairCmd = &cobra.Command{
	Use:   "gen-keypair",
	Short: "Generate a secp256k1 key pair for signing entries",
	Long: `Generate a random secp256k1 key pair. The public key is printed in compressed
hex form, the form used on the wire; the private key is printed in hex.

Example:
  entrynode gen-keypair`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := signature.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("failed to generate key pair: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\nPrivate Key: %s\n", kp.PublicKeyHex(), kp.PrivateKeyHex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genKeypairCmd)
}
