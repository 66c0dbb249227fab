package client

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// ClientOptions tunes outgoing grpc connections
type ClientOptions struct {
	MaxRecvMsgSize        int
	MaxSendMsgSize        int
	InitialWindowSize     int32
	InitialConnWindowSize int32

	KeepAliveTime    time.Duration
	KeepAliveTimeout time.Duration

	// ConnWaitTime bounds how long Connect waits for the connection to become ready
	ConnWaitTime time.Duration
	// WaitForReady skips the readiness wait when false
	WaitForReady bool
}

// DefaultClientOptions returns options matching the server defaults
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		MaxRecvMsgSize:        4 * 1024 * 1024,
		MaxSendMsgSize:        4 * 1024 * 1024,
		InitialWindowSize:     1024 * 1024,
		InitialConnWindowSize: 4 * 1024 * 1024,

		KeepAliveTime:    30 * time.Minute,
		KeepAliveTimeout: 20 * time.Second,

		ConnWaitTime: 10 * time.Second,
		WaitForReady: true,
	}
}

func (c *Client) buildDialOptions(opts *ClientOptions) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(c.creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(opts.MaxSendMsgSize),
		),
		grpc.WithInitialWindowSize(opts.InitialWindowSize),
		grpc.WithInitialConnWindowSize(opts.InitialConnWindowSize),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepAliveTime,
			Timeout:             opts.KeepAliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor()),
	}
}
