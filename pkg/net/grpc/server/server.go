// Package server wraps a grpc.Server with the node's options, interceptors
// and shutdown handling.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

// ServiceDesc pairs a grpc service description with its implementation
type ServiceDesc struct {
	Desc    *grpc.ServiceDesc
	Service interface{}
}

// Server is a grpc server that can listen on several addresses at once
type Server struct {
	name              string
	creds             credentials.TransportCredentials
	builder           ServerOptionBuilder
	services          []ServiceDesc
	unaryInterceptors []grpc.UnaryServerInterceptor

	mu     sync.Mutex
	server *grpc.Server
}

// NewServer returns a server using creds; nil creds means plaintext
func NewServer(name string, creds credentials.TransportCredentials) *Server {
	return NewServerWithBuilder(name, creds, defaultServerOptionBuilder{})
}

// NewServerWithBuilder returns a server with a custom option builder
func NewServerWithBuilder(name string, creds credentials.TransportCredentials, builder ServerOptionBuilder) *Server {
	return &Server{
		name:              name,
		creds:             creds,
		builder:           builder,
		unaryInterceptors: []grpc.UnaryServerInterceptor{UnaryServerInterceptor()},
	}
}

// RegisterService adds a service; it satisfies grpc.ServiceRegistrar.
// Services must be registered before the first Serve call.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = append(s.services, ServiceDesc{Desc: desc, Service: impl})
}

// AddUnaryInterceptor appends an interceptor run after the logging interceptor
func (s *Server) AddUnaryInterceptor(interceptor grpc.UnaryServerInterceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unaryInterceptors = append(s.unaryInterceptors, interceptor)
}

func (s *Server) grpcServer(opts *ServerOptions) *grpc.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return s.server
	}
	s.server = grpc.NewServer(s.buildServerOptions(opts)...)
	for _, svc := range s.services {
		s.server.RegisterService(svc.Desc, svc.Service)
	}
	return s.server
}

// Serve listens on address and serves until ctx is done
func (s *Server) Serve(ctx context.Context, address string, opts *ServerOptions) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Errorf("listen %s: %w", address, err)
	}
	return s.ServeListener(ctx, lis, opts)
}

// ServeListener serves on lis until ctx is done, then shuts down gracefully
func (s *Server) ServeListener(ctx context.Context, lis net.Listener, opts *ServerOptions) error {
	if opts == nil {
		opts = DefaultServerOptions()
	}
	srv := s.grpcServer(opts)

	serveErr := make(chan error, 1)
	go func() {
		logtrace.Info(ctx, "gRPC server listening", logtrace.Fields{
			logtrace.FieldModule:  "server",
			logtrace.FieldAddress: lis.Addr().String(),
			"name":                s.name,
		})
		serveErr <- srv.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return errors.Errorf("serve %s: %w", lis.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	s.stop(context.WithoutCancel(ctx), srv, opts.GracefulShutdownTimeout)
	return nil
}

func (s *Server) stop(ctx context.Context, srv *grpc.Server, timeout time.Duration) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logtrace.Info(ctx, "gRPC server stopped", logtrace.Fields{logtrace.FieldModule: "server", "name": s.name})
	case <-time.After(timeout):
		logtrace.Warn(ctx, "gRPC graceful stop timed out, forcing", logtrace.Fields{logtrace.FieldModule: "server", "name": s.name})
		srv.Stop()
	}
}

// Close stops the server immediately
func (s *Server) Close() {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		srv.Stop()
	}
}
