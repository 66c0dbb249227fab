//go:generate go run go.uber.org/mock/mockgen -destination=mocks/client_mock.go -package=mocks -source=p2p.go

package p2p

import (
	"context"
	"sync/atomic"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia/store/memory"
	"github.com/LumeraProtocol/entrynode/p2p/kademlia/store/sqlite"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

const logPrefix = "p2p"

// Record is a value held by the distributed store
type Record = domain.Record

var (
	// ErrNotFound is returned when no node holds the key
	ErrNotFound = domain.ErrNotFound

	// ErrNotRunning is returned by operations issued before Run or after it returned
	ErrNotRunning = errors.New("p2p service is not running")
)

// Client exposes the distributed store operations
type Client interface {
	// Put stores value under key on this node and the closest peers
	Put(ctx context.Context, key []byte, value []byte) error
	// Get returns the record under key, or an error wrapping ErrNotFound
	Get(ctx context.Context, key []byte) (*Record, error)
	// Stats returns a snapshot of the node's p2p state
	Stats(ctx context.Context) (*StatsSnapshot, error)
}

// P2P represents the p2p service
type P2P interface {
	Client

	// Run starts the DHT and blocks until ctx is done
	Run(ctx context.Context) error
}

type p2p struct {
	store   kademlia.Store
	dht     *kademlia.DHT
	config  *Config
	running atomic.Bool
	stats   *p2pStatsManager
}

// New returns a p2p service backed by a sqlite or in-memory record store
func New(ctx context.Context, config *Config) (P2P, error) {
	if config == nil {
		return nil, errors.New("p2p config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store kademlia.Store
	if config.InMemory {
		store = memory.NewStore()
	} else {
		s, err := sqlite.NewStore(ctx, config.DataDir)
		if err != nil {
			return nil, errors.Errorf("new kademlia store: %w", err)
		}
		store = s
	}

	return newWithStore(ctx, config, store)
}

func newWithStore(ctx context.Context, config *Config, store kademlia.Store) (*p2p, error) {
	bootstrapNodes, err := kademlia.ParseBootstrapNodes(config.BootstrapNodes)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}

	kademlia.SetLocalVersion(config.Version)
	kademlia.SetRequiredVersion(config.RequiredVersion)

	dht, err := kademlia.NewDHT(ctx, store, &kademlia.Options{
		ID:             config.nodeID(),
		IP:             config.ListenAddress,
		ExternalIP:     config.ExternalIP,
		Port:           config.Port,
		BootstrapNodes: bootstrapNodes,
		InboundRate:    config.InboundRate,
	})
	if err != nil {
		store.Close(ctx)
		return nil, errors.Errorf("new kademlia dht: %w", err)
	}

	return &p2p{
		store:  store,
		dht:    dht,
		config: config,
		stats:  newP2PStatsManager(),
	}, nil
}

// Run the kademlia network
func (s *p2p) Run(ctx context.Context) error {
	if err := s.dht.Start(ctx); err != nil {
		return errors.Errorf("start dht: %w", err)
	}
	s.running.Store(true)
	logtrace.Info(ctx, "p2p service is started", logtrace.Fields{
		logtrace.FieldModule:  logPrefix,
		"node":                s.dht.Self().String(),
		logtrace.FieldAddress: s.dht.Self().Address(),
	})

	<-ctx.Done()

	s.running.Store(false)
	stopCtx := context.WithoutCancel(ctx)
	s.dht.Stop(stopCtx)
	s.store.Close(stopCtx)
	logtrace.Info(stopCtx, "p2p service is stopped", logtrace.Fields{logtrace.FieldModule: logPrefix})
	return nil
}

// Put stores value under key
func (s *p2p) Put(ctx context.Context, key []byte, value []byte) error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	return s.dht.Put(ctx, key, value)
}

// Get retrieves the record under key
func (s *p2p) Get(ctx context.Context, key []byte) (*Record, error) {
	if !s.running.Load() {
		return nil, ErrNotRunning
	}
	return s.dht.Get(ctx, key)
}

// Stats returns the cached p2p snapshot, refreshing heavy diagnostics in the background
func (s *p2p) Stats(ctx context.Context) (*StatsSnapshot, error) {
	if !s.running.Load() {
		return nil, ErrNotRunning
	}
	return s.stats.Stats(ctx, s)
}
