// Package client is the Go SDK for entrynode's gRPC API.
package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	pb "github.com/LumeraProtocol/entrynode/api"
	"github.com/LumeraProtocol/entrynode/pkg/entry"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	grpcclient "github.com/LumeraProtocol/entrynode/pkg/net/grpc/client"
)

// Signer authorizes writes; *signature.KeyPair satisfies it.
type Signer interface {
	PublicKeyHex() string
	Sign(entryName string) string
}

// Client talks to one entrynode
type Client interface {
	// Get returns the entry stored at location
	Get(ctx context.Context, location string) (*entry.Entry, error)

	// Put stores e under the key derived from signature and returns that key.
	// On failure the key is still returned when the node reported it.
	Put(ctx context.Context, e entry.Entry, signature, publicKey string) (string, error)

	// PutSigned signs e with signer and stores it
	PutSigned(ctx context.Context, signer Signer, e entry.Entry) (string, error)

	// Status returns the node status, optionally with P2P metrics
	Status(ctx context.Context, includeP2PMetrics bool) (*pb.StatusResponse, error)

	// HealthCheck performs a health check on the node
	HealthCheck(ctx context.Context) (*grpc_health_v1.HealthCheckResponse, error)

	// Close releases resources used by the client
	Close(ctx context.Context) error
}

type config struct {
	creds       credentials.TransportCredentials
	options     *grpcclient.ClientOptions
	dialOptions []grpc.DialOption
}

// Option configures New
type Option func(*config)

// WithCredentials sets transport credentials; plaintext by default
func WithCredentials(creds credentials.TransportCredentials) Option {
	return func(c *config) { c.creds = creds }
}

// WithClientOptions overrides grpcclient.DefaultClientOptions
func WithClientOptions(opts *grpcclient.ClientOptions) Option {
	return func(c *config) { c.options = opts }
}

// WithDialOptions appends raw grpc dial options
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *config) { c.dialOptions = append(c.dialOptions, opts...) }
}

type entryClient struct {
	address      string
	conn         *grpc.ClientConn
	entryClient  pb.EntryServiceClient
	statusClient pb.StatusServiceClient
	healthClient grpc_health_v1.HealthClient
}

var _ Client = (*entryClient)(nil)

// New connects to the node at address
func New(ctx context.Context, address string, opts ...Option) (Client, error) {
	if address == "" {
		return nil, errors.New("address cannot be empty")
	}
	cfg := &config{options: grpcclient.DefaultClientOptions()}
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := grpcclient.NewClient(cfg.creds).Connect(ctx, address, cfg.options, cfg.dialOptions...)
	if err != nil {
		return nil, errors.Errorf("failed to connect to entrynode %s: %w", address, err)
	}
	logtrace.Debug(ctx, "Connected to entrynode", logtrace.Fields{logtrace.FieldModule: "sdk", logtrace.FieldAddress: address})

	return &entryClient{
		address:      address,
		conn:         conn,
		entryClient:  pb.NewEntryServiceClient(conn),
		statusClient: pb.NewStatusServiceClient(conn),
		healthClient: grpc_health_v1.NewHealthClient(conn),
	}, nil
}

func (c *entryClient) Get(ctx context.Context, location string) (*entry.Entry, error) {
	resp, err := c.entryClient.Get(ctx, &pb.GetRequest{Location: location})
	if err != nil {
		return nil, errors.Errorf("get %q: %w", location, err)
	}
	if resp.Entry == nil {
		return nil, errors.Errorf("get %q: empty response", location)
	}
	return resp.Entry, nil
}

func (c *entryClient) Put(ctx context.Context, e entry.Entry, signature, publicKey string) (string, error) {
	var trailer metadata.MD
	resp, err := c.entryClient.Put(ctx, &pb.PutRequest{
		Entry:     &e,
		Signature: signature,
		PublicKey: publicKey,
	}, grpc.Trailer(&trailer))
	if err != nil {
		var key string
		if keys := trailer.Get(pb.EntryKeyTrailer); len(keys) > 0 {
			key = keys[0]
		}
		return key, errors.Errorf("put %q: %w", e.Name, err)
	}

	logtrace.Debug(ctx, "Entry stored", logtrace.Fields{logtrace.FieldModule: "sdk", logtrace.FieldEntryName: e.Name, logtrace.FieldKey: resp.Key})
	return resp.Key, nil
}

func (c *entryClient) PutSigned(ctx context.Context, signer Signer, e entry.Entry) (string, error) {
	if signer == nil {
		return "", errors.New("signer cannot be nil")
	}
	return c.Put(ctx, e, signer.Sign(e.Name), signer.PublicKeyHex())
}

func (c *entryClient) Status(ctx context.Context, includeP2PMetrics bool) (*pb.StatusResponse, error) {
	resp, err := c.statusClient.GetStatus(ctx, &pb.StatusRequest{IncludeP2PMetrics: includeP2PMetrics})
	if err != nil {
		return nil, errors.Errorf("get status: %w", err)
	}
	return resp, nil
}

func (c *entryClient) HealthCheck(ctx context.Context) (*grpc_health_v1.HealthCheckResponse, error) {
	resp, err := c.healthClient.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return nil, errors.Errorf("health check failed: %w", err)
	}
	return resp, nil
}

func (c *entryClient) Close(ctx context.Context) error {
	if c.conn != nil {
		logtrace.Debug(ctx, "Closing connection to entrynode", logtrace.Fields{logtrace.FieldModule: "sdk", logtrace.FieldAddress: c.address})
		return c.conn.Close()
	}
	return nil
}
