package server

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// ServerOptions tunes the grpc server
type ServerOptions struct {
	MaxRecvMsgSize        int
	MaxSendMsgSize        int
	InitialWindowSize     int32
	InitialConnWindowSize int32
	MaxConcurrentStreams  uint32
	ReadBufferSize        int
	WriteBufferSize       int

	MaxConnectionIdle     time.Duration
	MaxConnectionAge      time.Duration
	MaxConnectionAgeGrace time.Duration
	KeepAliveTime         time.Duration
	KeepAliveTimeout      time.Duration
	MinClientPingTime     time.Duration

	GracefulShutdownTimeout time.Duration
}

// DefaultServerOptions returns options sized for small JSON messages
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		MaxRecvMsgSize:        4 * 1024 * 1024,
		MaxSendMsgSize:        4 * 1024 * 1024,
		InitialWindowSize:     1024 * 1024,
		InitialConnWindowSize: 4 * 1024 * 1024,
		MaxConcurrentStreams:  1000,
		ReadBufferSize:        32 * 1024,
		WriteBufferSize:       32 * 1024,

		MaxConnectionIdle:     2 * time.Hour,
		MaxConnectionAge:      0,
		MaxConnectionAgeGrace: 5 * time.Minute,
		KeepAliveTime:         time.Hour,
		KeepAliveTimeout:      20 * time.Second,
		MinClientPingTime:     time.Minute,

		GracefulShutdownTimeout: 30 * time.Second,
	}
}

//go:generate go run go.uber.org/mock/mockgen -destination=server_mock.go -package=server -source=options.go

// ServerOptionBuilder turns ServerOptions into grpc server options
type ServerOptionBuilder interface {
	buildKeepAlivePolicy(opts *ServerOptions) keepalive.EnforcementPolicy
	buildKeepAliveParams(opts *ServerOptions) keepalive.ServerParameters
}

type defaultServerOptionBuilder struct{}

func (defaultServerOptionBuilder) buildKeepAlivePolicy(opts *ServerOptions) keepalive.EnforcementPolicy {
	return keepalive.EnforcementPolicy{
		MinTime:             opts.MinClientPingTime,
		PermitWithoutStream: true,
	}
}

func (defaultServerOptionBuilder) buildKeepAliveParams(opts *ServerOptions) keepalive.ServerParameters {
	return keepalive.ServerParameters{
		MaxConnectionIdle:     opts.MaxConnectionIdle,
		MaxConnectionAge:      opts.MaxConnectionAge,
		MaxConnectionAgeGrace: opts.MaxConnectionAgeGrace,
		Time:                  opts.KeepAliveTime,
		Timeout:               opts.KeepAliveTimeout,
	}
}

func (s *Server) buildServerOptions(opts *ServerOptions) []grpc.ServerOption {
	serverOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(opts.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(opts.MaxSendMsgSize),
		grpc.InitialWindowSize(opts.InitialWindowSize),
		grpc.InitialConnWindowSize(opts.InitialConnWindowSize),
		grpc.MaxConcurrentStreams(opts.MaxConcurrentStreams),
		grpc.ReadBufferSize(opts.ReadBufferSize),
		grpc.WriteBufferSize(opts.WriteBufferSize),
		grpc.KeepaliveEnforcementPolicy(s.builder.buildKeepAlivePolicy(opts)),
		grpc.KeepaliveParams(s.builder.buildKeepAliveParams(opts)),
		grpc.ChainUnaryInterceptor(s.unaryInterceptors...),
	}
	if s.creds != nil {
		serverOpts = append(serverOpts, grpc.Creds(s.creds))
	}
	return serverOpts
}
