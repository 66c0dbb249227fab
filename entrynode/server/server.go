package server

import (
	"context"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	grpcserver "github.com/LumeraProtocol/entrynode/pkg/net/grpc/server"
)

// Server represents the entry node RPC server
type Server struct {
	listenAddrs  string
	port         int
	services     []grpcserver.ServiceDesc
	name         string
	opts         *grpcserver.ServerOptions
	grpcServer   *grpcserver.Server
	healthServer *health.Server
}

// Run serves every configured address until ctx is done or one listener fails
func (server *Server) Run(ctx context.Context) error {
	ctx = logtrace.CtxWithCorrelationID(ctx, server.name)

	logtrace.SetGRPCLogger()
	logtrace.Debug(ctx, "Server listening", logtrace.Fields{logtrace.FieldModule: "server", "addresses": server.listenAddrs})

	group, ctx := errgroup.WithContext(ctx)

	for _, address := range strings.Split(server.listenAddrs, ",") {
		host := strings.TrimSpace(address)
		if host == "" {
			continue
		}
		addr := net.JoinHostPort(host, strconv.Itoa(server.port))

		group.Go(func() error {
			logtrace.Debug(ctx, "Starting gRPC server", logtrace.Fields{logtrace.FieldModule: "server", logtrace.FieldAddress: addr})
			return server.grpcServer.Serve(ctx, addr, server.opts)
		})
	}

	err := group.Wait()
	server.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return err
}

func (server *Server) setupGRPCServer() {
	server.grpcServer = grpcserver.NewServer(server.name, nil)

	server.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(server.grpcServer, server.healthServer)

	for _, s := range server.services {
		server.grpcServer.RegisterService(s.Desc, s.Service)
	}
	server.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (server *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	server.healthServer.SetServingStatus("", status)
	for _, s := range server.services {
		if s.Desc != nil {
			server.healthServer.SetServingStatus(s.Desc.ServiceName, status)
		}
	}
}

// SetServiceStatus allows updating the health status of a specific service
func (server *Server) SetServiceStatus(serviceName string, status healthpb.HealthCheckResponse_ServingStatus) {
	server.healthServer.SetServingStatus(serviceName, status)
}

// Close marks every service as not serving and stops the server
func (server *Server) Close() {
	server.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	server.grpcServer.Close()
}

// New returns a new Server instance. listenAddrs is a comma separated host list;
// nil opts means grpcserver.DefaultServerOptions.
func New(listenAddrs string, port int, name string, opts *grpcserver.ServerOptions, services ...grpcserver.ServiceDesc) (*Server, error) {
	if strings.TrimSpace(strings.ReplaceAll(listenAddrs, ",", "")) == "" {
		return nil, errors.New("listen addresses cannot be empty")
	}
	if port < 0 || port > 65535 {
		return nil, errors.Errorf("invalid port %d", port)
	}
	if opts == nil {
		opts = grpcserver.DefaultServerOptions()
	}
	server := &Server{
		listenAddrs: listenAddrs,
		port:        port,
		services:    services,
		name:        name,
		opts:        opts,
	}
	server.setupGRPCServer()
	return server, nil
}
