package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/entry"
	"github.com/LumeraProtocol/entrynode/pkg/keyring"
	"github.com/LumeraProtocol/entrynode/pkg/signature"
	"github.com/LumeraProtocol/entrynode/sdk/client"
)

var (
	putName      string
	putData      string
	putDataFile  string
	putMetadata  map[string]string
	putSecretKey string
	putKeyName   string
)

// putCmd signs and writes an entry to a running node
var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Sign and store an entry",
	Long: `Sign an entry and store it on a running node. The entry is signed either
with a hex secret key (see gen-keypair) or with a keyring key. The store key
is printed on success and can be passed to get.

Example:
  entrynode put --name greeting --data hello --secret-key <hex>
  entrynode put --name report --data-file ./report.bin --key-name mykey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := entry.Entry{Name: putName, Data: []byte(putData), Metadata: putMetadata}
		if putDataFile != "" {
			data, err := os.ReadFile(putDataFile)
			if err != nil {
				return fmt.Errorf("failed to read data file: %w", err)
			}
			e.Data = data
		}
		if len(e.Metadata) == 0 {
			e.Metadata = nil
		}

		pub, sig, err := signPut(e.Name)
		if err != nil {
			return err
		}

		return withClient(cmd, func(ctx context.Context, c client.Client) error {
			key, err := c.Put(ctx, e, sig, pub)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key: %s\n", key)
			return nil
		})
	},
}

// signPut returns the public key and signature for entryName
func signPut(entryName string) (string, string, error) {
	if putSecretKey != "" {
		kp, err := signature.ParsePrivateKey(putSecretKey)
		if err != nil {
			return "", "", err
		}
		return kp.PublicKeyHex(), kp.Sign(entryName), nil
	}

	kr, err := initKeyringFromConfig()
	if err != nil {
		return "", "", err
	}
	return keyring.SignEntryName(kr, putKeyName, entryName)
}

func init() {
	putCmd.Flags().StringVar(&putName, "name", "", "entry name")
	putCmd.Flags().StringVar(&putData, "data", "", "entry data")
	putCmd.Flags().StringVar(&putDataFile, "data-file", "", "read entry data from a file")
	putCmd.Flags().StringToStringVar(&putMetadata, "metadata", nil, "entry metadata as key=value pairs")
	putCmd.Flags().StringVar(&putSecretKey, "secret-key", "", "hex secp256k1 secret key to sign with")
	putCmd.Flags().StringVar(&putKeyName, "key-name", "", "keyring key to sign with")
	_ = putCmd.MarkFlagRequired("name")
	putCmd.MarkFlagsMutuallyExclusive("data", "data-file")
	putCmd.MarkFlagsMutuallyExclusive("secret-key", "key-name")
	putCmd.MarkFlagsOneRequired("secret-key", "key-name")
	addClientFlags(putCmd)
	rootCmd.AddCommand(putCmd)
}
