package cmd

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/LumeraProtocol/entrynode/entrynode/config"
	"github.com/LumeraProtocol/entrynode/entrynode/dispatch"
	"github.com/LumeraProtocol/entrynode/entrynode/server"
	statussvc "github.com/LumeraProtocol/entrynode/entrynode/status"
	entryapi "github.com/LumeraProtocol/entrynode/entrynode/transport/grpc/api"
	statusapi "github.com/LumeraProtocol/entrynode/entrynode/transport/grpc/status"
	"github.com/LumeraProtocol/entrynode/p2p"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	grpcserver "github.com/LumeraProtocol/entrynode/pkg/net/grpc/server"
	"github.com/LumeraProtocol/entrynode/pkg/task"
)

// EntryNode wires the p2p store, the dispatcher and the RPC server together
type EntryNode struct {
	config      *config.Config
	p2pService  p2p.P2P
	broadcaster *dispatch.Broadcaster
	dispatcher  *dispatch.Dispatcher
	server      *server.Server
}

// NewEntryNode creates a new entry node instance
func NewEntryNode(ctx context.Context, cfg *config.Config) (*EntryNode, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	p2pConfig := cfg.P2P
	p2pConfig.ID = cfg.Node.Identity
	p2pConfig.Version = statussvc.Version

	logtrace.Info(ctx, "Initializing P2P service", logtrace.Fields{
		"listen_address": p2pConfig.ListenAddress,
		"port":           p2pConfig.Port,
		"data_dir":       p2pConfig.DataDir,
		"in_memory":      p2pConfig.InMemory,
	})

	p2pService, err := p2p.New(ctx, &p2pConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize p2p service: %w", err)
	}

	broadcaster := dispatch.NewBroadcaster(cfg.API.BroadcastBuffer)
	dispatcher := dispatch.New(p2pService, broadcaster, dispatch.Config{
		QueueSize:    cfg.API.QueueSize,
		StoreTimeout: cfg.API.StoreTimeout,
		FailFast:     cfg.API.FailFast,
	})
	tracker := task.New()

	entryServer := entryapi.NewEntryServer(dispatcher, broadcaster, tracker, cfg.API.RequestTimeout)
	statusServer := statusapi.NewStatusServer(statussvc.NewService(p2pService, dispatcher, broadcaster, tracker))

	srv, err := server.New(cfg.API.Host, int(cfg.API.Port), "entrynode", nil,
		grpcserver.ServiceDesc{Desc: entryServer.Desc(), Service: entryServer},
		grpcserver.ServiceDesc{Desc: statusServer.Desc(), Service: statusServer},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &EntryNode{
		config:      cfg,
		p2pService:  p2pService,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		server:      srv,
	}, nil
}

// Run starts all services and blocks until ctx is done or one of them fails
func (n *EntryNode) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logtrace.Info(ctx, "Starting P2P service", logtrace.Fields{})
		if err := n.p2pService.Run(ctx); err != nil {
			return fmt.Errorf("p2p service error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return n.dispatcher.Run(ctx)
	})
	group.Go(func() error {
		logtrace.Info(ctx, "Starting RPC server", logtrace.Fields{"hosts": n.config.API.Host, "port": n.config.API.Port})
		return n.server.Run(ctx)
	})

	err := group.Wait()
	n.broadcaster.Close()
	return err
}
