package cmd

import (
	"fmt"

	sdkkeyring "github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/pkg/keyring"
)

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing keys",
	Long: `Manage the secp256k1 keys used to sign entry writes.
This command provides subcommands for adding, recovering, listing keys and signing entry names.`,
}

// initKeyringFromConfig loads the config and opens its keyring
func initKeyringFromConfig() (sdkkeyring.Keyring, error) {
	if err := loadAppConfig(); err != nil {
		return nil, err
	}
	kr, err := keyring.InitKeyring(appConfig.Keyring.Backend, appConfig.Keyring.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyring: %w", err)
	}
	return kr, nil
}

// keyNameArg returns args[0] or the configured key name
func keyNameArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if appConfig != nil && appConfig.Node.KeyName != "" {
		return appConfig.Node.KeyName, nil
	}
	return "", fmt.Errorf("key name is required")
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
