package server

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	pb "github.com/LumeraProtocol/entrynode/api"
	grpcserver "github.com/LumeraProtocol/entrynode/pkg/net/grpc/server"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestNewValidation(t *testing.T) {
	_, err := New("", 5000, "test", nil)
	assert.Error(t, err)
	_, err = New(" , ", 5000, "test", nil)
	assert.Error(t, err)
	_, err = New("127.0.0.1", 70000, "test", nil)
	assert.Error(t, err)
}

func TestServerRunHealthAndShutdown(t *testing.T) {
	port := freePort(t)
	srv, err := New("127.0.0.1", port, "entrynode-test", nil, grpcserver.ServiceDesc{
		Desc:    &pb.EntryService_ServiceDesc,
		Service: pb.UnimplementedEntryServiceServer{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	conn, err := grpc.NewClient(net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	health := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		cctx, ccancel := context.WithTimeout(context.Background(), time.Second)
		defer ccancel()
		resp, err := health.Check(cctx, &healthpb.HealthCheckRequest{Service: pb.EntryServiceName})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 50*time.Millisecond)

	_, err = pb.NewEntryServiceClient(conn).Get(context.Background(), &pb.GetRequest{Location: "x"})
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	srv.SetServiceStatus(pb.EntryServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: pb.EntryServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerRunPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv, err := New("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, "entrynode-test", nil)
	require.NoError(t, err)
	assert.Error(t, srv.Run(context.Background()))
}
