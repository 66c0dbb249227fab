package cmd

import (
	"context"
	"net"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/sdk/client"
)

var (
	nodeAddr    string
	callTimeout time.Duration
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nodeAddress returns --addr, or the local API address from the config file
func nodeAddress() string {
	if nodeAddr != "" {
		return nodeAddr
	}
	host, port := "localhost", strconv.Itoa(config.DefaultAPIPort)
	if cfg, err := config.LoadConfig(cfgFile); err == nil {
		if hosts := cfg.API.Hosts(); len(hosts) > 0 && hosts[0] != "0.0.0.0" && hosts[0] != "::" {
			host = hosts[0]
		}
		port = strconv.Itoa(int(cfg.API.Port))
	}
	return net.JoinHostPort(host, port)
}

// withClient connects to the node and runs fn with a bounded context
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	c, err := client.New(ctx, nodeAddress())
	if err != nil {
		return err
	}
	defer c.Close(ctx)
	return fn(ctx, c)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(b, '\n'))
	return err
}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&nodeAddr, "addr", "", "entrynode API address host:port (defaults to the configured API port on localhost)")
	cmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "request timeout")
}
