package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/sdk/client"
)

// getCmd reads an entry from a running node
var getCmd = &cobra.Command{
	Use:   "get <location>",
	Short: "Read the entry stored at a location",
	Long: `Read the entry stored at a location and print it as JSON.
The location is the key returned by put.

Example:
  entrynode get e_3045022100...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c client.Client) error {
			e, err := c.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, e)
		})
	},
}

func init() {
	addClientFlags(getCmd)
	rootCmd.AddCommand(getCmd)
}
