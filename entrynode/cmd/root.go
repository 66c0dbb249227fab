package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

var (
	cfgFile   string
	logLevel  string
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "entrynode",
	Short: "Authenticated key/value entries over a P2P store",
	Long: `entrynode serves signed entries from a Kademlia-style distributed store.
Writes are authorized by a secp256k1 signature over "<public key hex>/<entry name>";
reads address entries by the key returned from the write.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logtrace.Setup("entrynode", logLevel, "console")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadAppConfig reads --config into appConfig
func loadAppConfig() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appConfig = cfg
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for client commands (debug, info, warn, error)")
}
