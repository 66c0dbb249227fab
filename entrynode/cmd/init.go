package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia"
	"github.com/LumeraProtocol/entrynode/pkg/keyring"
)

var (
	forceInit      bool
	nonInteractive bool
	createKey      bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new entry node configuration",
	Long: `Initialize a new entry node by writing a configuration file and optionally
creating a signing key.

This command will guide you through an interactive setup process to:
1. Select keyring backend and key name
2. Configure the API and P2P ports
3. Configure bootstrap nodes

Example:
  entrynode init
  entrynode init --yes --config ./node/config.yml
  entrynode init --force  # Override existing configuration`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, err := filepath.Abs(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}

		if _, err := os.Stat(cfgPath); err == nil && !forceInit {
			if nonInteractive {
				return fmt.Errorf("config file already exists at %s\nUse --force to overwrite", cfgPath)
			}
			overwrite := false
			if err := survey.AskOne(&survey.Confirm{
				Message: fmt.Sprintf("Config file %s already exists. Overwrite?", cfgPath),
				Default: false,
			}, &overwrite); err != nil {
				return err
			}
			if !overwrite {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted; existing configuration kept")
				return nil
			}
		}

		cfg := config.DefaultConfig()
		if !nonInteractive {
			if err := gatherUserInputs(cfg); err != nil {
				return err
			}
		}
		cfg.BaseDir = filepath.Dir(cfgPath)

		if createKey {
			if err := setupKey(cmd, cfg); err != nil {
				return err
			}
		}

		if err := config.SaveConfig(cfg, cfgPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration saved to %s\n", cfgPath)
		fmt.Fprintln(out, "You can now start your entry node with:")
		fmt.Fprintf(out, "  entrynode start --config %s\n", cfgPath)
		return nil
	},
}

// gatherUserInputs fills cfg from interactive prompts
func gatherUserInputs(cfg *config.Config) error {
	if err := survey.AskOne(&survey.Select{
		Message: "Choose keyring backend:",
		Options: []string{"os", "file", "test"},
		Default: cfg.Keyring.Backend,
		Help:    "os: OS keyring (most secure), file: encrypted file, test: unencrypted (dev only)",
	}, &cfg.Keyring.Backend); err != nil {
		return fmt.Errorf("failed to select keyring backend: %w", err)
	}

	if err := survey.AskOne(&survey.Input{
		Message: "Enter key name:",
		Default: cfg.Node.KeyName,
	}, &cfg.Node.KeyName, survey.WithValidator(survey.Required)); err != nil {
		return fmt.Errorf("failed to read key name: %w", err)
	}

	if err := survey.AskOne(&survey.Input{
		Message: "Enter node identity:",
		Help:    "Hashed into the DHT node id; leave empty for a random id on every start",
	}, &cfg.Node.Identity); err != nil {
		return fmt.Errorf("failed to read identity: %w", err)
	}

	apiPort, err := askPort("Enter API port:", cfg.API.Port)
	if err != nil {
		return err
	}
	cfg.API.Port = apiPort

	p2pPort, err := askPort("Enter P2P port:", cfg.P2P.Port)
	if err != nil {
		return err
	}
	if p2pPort == apiPort {
		return fmt.Errorf("API and P2P ports must differ")
	}
	cfg.P2P.Port = p2pPort

	if err := survey.AskOne(&survey.Input{
		Message: "Enter bootstrap nodes (host:port, comma separated):",
		Help:    "Leave empty to start a new network",
	}, &cfg.P2P.BootstrapNodes, survey.WithValidator(func(ans interface{}) error {
		_, err := kademlia.ParseBootstrapNodes(ans.(string))
		return err
	})); err != nil {
		return fmt.Errorf("failed to read bootstrap nodes: %w", err)
	}
	return nil
}

func askPort(message string, def uint16) (uint16, error) {
	var portStr string
	if err := survey.AskOne(&survey.Input{
		Message: message,
		Default: strconv.Itoa(int(def)),
	}, &portStr); err != nil {
		return 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("invalid port: %s", portStr)
	}
	return uint16(port), nil
}

// setupKey creates the configured signing key and prints its mnemonic
func setupKey(cmd *cobra.Command, cfg *config.Config) error {
	kr, err := keyring.InitKeyring(cfg.Keyring.Backend, cfg.ResolvePath(cfg.Keyring.Dir))
	if err != nil {
		return err
	}
	mnemonic, rec, err := keyring.CreateNewAccount(kr, cfg.Node.KeyName, keyring.DefaultEntropySize)
	if err != nil {
		return fmt.Errorf("failed to create new account: %w", err)
	}
	pub, err := keyring.PublicKeyHex(kr, rec.Name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key generated successfully! Name: %s\n", rec.Name)
	fmt.Fprintf(out, "- Public key: %s\n", pub)
	fmt.Fprintf(out, "- Mnemonic: %s\n", mnemonic)
	fmt.Fprintln(out, "\nIMPORTANT: Write down the mnemonic and keep it in a safe place.")
	return nil
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing configuration")
	initCmd.Flags().BoolVarP(&nonInteractive, "yes", "y", false, "write defaults without prompting")
	initCmd.Flags().BoolVar(&createKey, "create-key", false, "create the signing key in the keyring")
	rootCmd.AddCommand(initCmd)
}
