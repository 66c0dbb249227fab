package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/sdk/client"
)

var statusP2P bool

// statusCmd prints the status of a running node
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c client.Client) error {
			hc, err := c.HealthCheck(ctx)
			if err != nil {
				return err
			}
			st, err := c.Status(ctx, statusP2P)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"health": hc.Status.String(),
				"status": st,
			})
		})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusP2P, "p2p", false, "include P2P metrics")
	addClientFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}
