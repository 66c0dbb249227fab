// Package client dials grpc servers with the node's default options and
// propagates correlation ids to them.
package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	grpcserver "github.com/LumeraProtocol/entrynode/pkg/net/grpc/server"
)

// Client creates grpc connections
type Client struct {
	creds credentials.TransportCredentials
}

// NewClient returns a client using creds; nil creds means plaintext
func NewClient(creds credentials.TransportCredentials) *Client {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	return &Client{creds: creds}
}

// Connect dials address and, unless opts.WaitForReady is false, waits until the
// connection is ready or opts.ConnWaitTime elapses.
func (c *Client) Connect(ctx context.Context, address string, opts *ClientOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if opts == nil {
		opts = DefaultClientOptions()
	}
	conn, err := grpc.NewClient(address, append(c.buildDialOptions(opts), extra...)...)
	if err != nil {
		return nil, errors.Errorf("dial %s: %w", address, err)
	}
	if !opts.WaitForReady {
		return conn, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.ConnWaitTime)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			break
		}
		if state == connectivity.Shutdown || !conn.WaitForStateChange(waitCtx, state) {
			_ = conn.Close()
			return nil, errors.Errorf("connect %s: not ready (last state %s)", address, state)
		}
	}

	logtrace.Debug(ctx, "gRPC connection ready", logtrace.Fields{logtrace.FieldModule: "client", logtrace.FieldAddress: address})
	return conn, nil
}

// UnaryClientInterceptor forwards the context correlation id as request metadata
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := logtrace.CorrelationID(ctx); id != "unknown" {
			ctx = metadata.AppendToOutgoingContext(ctx, grpcserver.CorrelationIDHeader, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
