package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
)

func TestStoreRetrieve(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Retrieve(ctx, []byte("missing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Store(ctx, []byte("e_sig"), []byte("v1")))
	first, err := s.Retrieve(ctx, []byte("e_sig"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), first.Value)

	require.NoError(t, s.Store(ctx, []byte("e_sig"), []byte("v2")))
	second, err := s.Retrieve(ctx, []byte("e_sig"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), second.Value)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.Retrieve(ctx, []byte("e_other"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetKeysForReplication(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Store(ctx, []byte{0x01}, []byte("a")))
	require.NoError(t, s.Store(ctx, []byte{0x02}, []byte("b")))

	keys := s.GetKeysForReplication(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour), 10)
	require.Len(t, keys, 2)
	assert.ElementsMatch(t, []string{"01", "02"}, []string{keys[0].Key, keys[1].Key})

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Nil(t, s.GetKeysForReplication(canceled, time.Time{}, time.Now(), 10))
}

func TestStatsCountsBytes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Store(ctx, []byte("k"), make([]byte, 1024*1024)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsCount)
	assert.InDelta(t, 1.0, stats.SizeMB, 0.001)
}
