package kademlia

import (
	"context"
	"time"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
)

// Store is the local record storage of a DHT node
type Store interface {
	// Store writes value under key, replacing any previous value
	Store(ctx context.Context, key []byte, value []byte) error

	// Retrieve returns the record under key or domain.ErrNotFound
	Retrieve(ctx context.Context, key []byte) (*domain.Record, error)

	// Count returns the number of records
	Count(ctx context.Context) (int, error)

	// Stats returns storage statistics
	Stats(ctx context.Context) (domain.DatabaseStats, error)

	// GetKeysForReplication returns hex keys written in (from, to), oldest first. It returns
	// nil on failure and a non-nil, possibly empty slice on success.
	GetKeysForReplication(ctx context.Context, from time.Time, to time.Time, maxKeys int) domain.KeysWithTimestamp

	// Close the store
	Close(ctx context.Context)
}
