package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/entrynode/verifier"
	"github.com/LumeraProtocol/entrynode/pkg/keyring"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

var skipVerify bool

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the entry node",
	Long: `Start the entry node using the configuration defined in config.yml.
The node joins the P2P network, starts the request dispatcher and serves the
entry, status and health gRPC services until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadAppConfig(); err != nil {
			return err
		}

		logtrace.Setup("entrynode", appConfig.Log.Level, appConfig.Log.Format)
		defer logtrace.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logtrace.CtxWithCorrelationID(ctx, "entrynode-start")

		logtrace.Info(ctx, "Starting entry node with configuration", logtrace.Fields{
			"config_file": cfgFile,
			"api_port":    appConfig.API.Port,
			"p2p_port":    appConfig.P2P.Port,
		})

		if !skipVerify {
			if err := verifyConfig(ctx); err != nil {
				return err
			}
		}

		node, err := NewEntryNode(ctx, appConfig)
		if err != nil {
			logtrace.Error(ctx, "Failed to initialize entry node", logtrace.Fields{logtrace.FieldError: err.Error()})
			return err
		}

		if err := node.Run(ctx); err != nil {
			logtrace.Error(ctx, "Entry node stopped with error", logtrace.Fields{logtrace.FieldError: err.Error()})
			return err
		}
		logtrace.Info(ctx, "Entry node stopped", logtrace.Fields{})
		return nil
	},
}

func verifyConfig(ctx context.Context) error {
	kr, err := keyring.InitKeyring(appConfig.Keyring.Backend, appConfig.Keyring.Dir)
	if err != nil {
		logtrace.Warn(ctx, "Keyring unavailable, skipping key check", logtrace.Fields{logtrace.FieldError: err.Error()})
		kr = nil
	}

	result, err := verifier.NewConfigVerifier(appConfig, kr).VerifyConfig(ctx)
	if err != nil {
		return fmt.Errorf("config verification failed: %w", err)
	}
	for _, w := range result.Warnings {
		logtrace.Warn(ctx, "Config warning", logtrace.Fields{"field": w.Field, "message": w.Message})
	}
	if !result.IsValid() {
		for _, e := range result.Errors {
			logtrace.Error(ctx, "Config error", logtrace.Fields{"field": e.Field, "message": e.Message})
		}
		return fmt.Errorf("config verification failed: %s (%d errors)", result.Summary(), len(result.Errors))
	}
	return nil
}

func init() {
	startCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip config verification before start")
	rootCmd.AddCommand(startCmd)
}
