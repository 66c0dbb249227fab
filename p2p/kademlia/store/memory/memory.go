// Package memory is an in-process record store for nodes that do not persist data.
package memory

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

type item struct {
	value     []byte
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps records in memory, keyed by hex key
type Store struct {
	cache *gocache.Cache
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Store writes value under key
func (s *Store) Store(_ context.Context, key []byte, value []byte) error {
	k := hex.EncodeToString(key)
	now := time.Now().UTC()
	it := &item{value: append([]byte(nil), value...), createdAt: now, updatedAt: now}
	if v, ok := s.cache.Get(k); ok {
		it.createdAt = v.(*item).createdAt
	}
	s.cache.Set(k, it, gocache.NoExpiration)
	return nil
}

// Retrieve returns the record under key
func (s *Store) Retrieve(_ context.Context, key []byte) (*domain.Record, error) {
	v, ok := s.cache.Get(hex.EncodeToString(key))
	if !ok {
		return nil, domain.ErrNotFound
	}
	it := v.(*item)
	return &domain.Record{
		Key:       key,
		Value:     append([]byte(nil), it.value...),
		CreatedAt: it.createdAt,
		UpdatedAt: it.updatedAt,
	}, nil
}

// Count returns the number of records
func (s *Store) Count(_ context.Context) (int, error) {
	return s.cache.ItemCount(), nil
}

// Stats returns the record count and payload size
func (s *Store) Stats(_ context.Context) (domain.DatabaseStats, error) {
	var size int
	items := s.cache.Items()
	for _, v := range items {
		size += len(v.Object.(*item).value)
	}
	return domain.DatabaseStats{RecordsCount: len(items), SizeMB: utils.BytesIntToMB(size)}, nil
}

// GetKeysForReplication returns keys updated in (from, to), oldest first
func (s *Store) GetKeysForReplication(ctx context.Context, from time.Time, to time.Time, maxKeys int) domain.KeysWithTimestamp {
	if ctx.Err() != nil {
		return nil
	}

	keys := domain.KeysWithTimestamp{}
	for k, v := range s.cache.Items() {
		it := v.Object.(*item)
		if it.updatedAt.After(from) && it.updatedAt.Before(to) {
			keys = append(keys, domain.KeyWithTimestamp{Key: k, UpdatedAt: it.updatedAt})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].UpdatedAt.Equal(keys[j].UpdatedAt) {
			return keys[i].UpdatedAt.Before(keys[j].UpdatedAt)
		}
		return keys[i].Key < keys[j].Key
	})

	if maxKeys > 0 && len(keys) > maxKeys {
		// keep every key sharing the boundary timestamp
		boundary := keys[maxKeys-1].UpdatedAt
		cut := maxKeys
		for cut < len(keys) && keys[cut].UpdatedAt.Equal(boundary) {
			cut++
		}
		keys = keys[:cut]
	}
	return keys
}

// Close is a no-op
func (s *Store) Close(_ context.Context) {}
