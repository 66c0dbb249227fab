package p2p

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestService(t *testing.T) P2P {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	svc, err := New(ctx, &Config{ListenAddress: "127.0.0.1", InMemory: true, ID: "node-a"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("p2p service did not stop")
		}
	})

	require.Eventually(t, func() bool {
		_, err := svc.Get(context.Background(), []byte("probe"))
		return !errors.Is(err, ErrNotRunning)
	}, 5*time.Second, 10*time.Millisecond)
	return svc
}

func TestServiceNotRunning(t *testing.T) {
	ctx := context.Background()
	svc, err := New(ctx, &Config{ListenAddress: "127.0.0.1", InMemory: true})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Put(ctx, []byte("k"), []byte("v")), ErrNotRunning)
	_, err = svc.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = svc.Stats(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestServicePutGet(t *testing.T) {
	ctx := context.Background()
	svc := startTestService(t)

	require.NoError(t, svc.Put(ctx, []byte("e_abc"), []byte(`{"name":"x"}`)))

	record, err := svc.Get(ctx, []byte("e_abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"x"}`), record.Value)

	_, err = svc.Get(ctx, []byte("nowhere"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceStatsRefreshesDiagnostics(t *testing.T) {
	ctx := context.Background()
	svc := startTestService(t)
	require.NoError(t, svc.Put(ctx, []byte("e_1"), []byte("one")))

	snap, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Self)
	assert.Equal(t, 0, snap.PeersCount)

	require.Eventually(t, func() bool {
		snap, err := svc.Stats(ctx)
		return err == nil && snap.Database.RecordsCount == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStatsManagerKeepsRefreshedSnapshot(t *testing.T) {
	ctx := context.Background()
	m := newP2PStatsManager()

	require.True(t, m.setSnapshot(&StatsSnapshot{Database: DatabaseStats{RecordsCount: 3}}))
	require.True(t, m.markFresh())
	assert.True(t, m.isFresh())

	snap, err := m.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Database.RecordsCount)

	snap.Database.RecordsCount = 99
	again, err := m.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Database.RecordsCount)

	require.True(t, m.setSnapshot(&StatsSnapshot{Database: DatabaseStats{RecordsCount: 4}}))

	again, err = m.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Database.RecordsCount)
}

func TestStatsRefreshFillsDiagnostics(t *testing.T) {
	ctx := context.Background()
	svc := startTestService(t).(*p2p)
	require.NoError(t, svc.Put(ctx, []byte("e_1"), []byte("one")))
	_, err := svc.Get(ctx, []byte("e_1"))
	require.NoError(t, err)

	require.NoError(t, svc.stats.refreshDiagnostics(ctx, svc))
	assert.True(t, svc.stats.isFresh())

	snap, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Database.RecordsCount)
	assert.EqualValues(t, 1, snap.DHTMetrics.LocalHits)
	assert.NotEmpty(t, snap.Self)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0", cfg.ListenAddress)
	assert.Equal(t, defaultDataDir, cfg.DataDir)

	for name, bad := range map[string]*Config{
		"listen address": {ListenAddress: "not-an-ip"},
		"external ip":    {ExternalIP: "bad"},
		"bootstrap":      {BootstrapNodes: "10.0.0.1"},
		"inbound rate":   {InboundRate: -1},
	} {
		assert.Error(t, bad.Validate(), name)
	}

	inMem := &Config{InMemory: true}
	require.NoError(t, inMem.Validate())
	assert.Empty(t, inMem.DataDir)
}

func TestConfigNodeID(t *testing.T) {
	assert.Nil(t, (&Config{}).nodeID())
	a := (&Config{ID: "node-a"}).nodeID()
	assert.Len(t, a, 32)
	assert.Equal(t, a, (&Config{ID: "node-a"}).nodeID())
	assert.NotEqual(t, a, (&Config{ID: "node-b"}).nodeID())
}
