package p2p

import (
	"context"
	"sync/atomic"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const (
	// p2pStatsLKGKey holds the last-known-good snapshot served to callers.
	// p2pStatsFreshKey is a short-lived marker; while present no new refresh starts.
	p2pStatsLKGKey   = "p2p_stats/snapshot"
	p2pStatsFreshKey = "p2p_stats/fresh"

	p2pStatsFreshTTL       = 30 * time.Second
	p2pStatsCacheKeepAlive = 10 * time.Minute
	p2pStatsRefreshTimeout = 6 * time.Second

	p2pStatsSlowRefreshThreshold = 750 * time.Millisecond
)

type p2pStatsManager struct {
	cache *ristretto.Cache[string, any]
	sf    singleflight.Group

	refreshInFlight atomic.Bool
}

func newP2PStatsManager() *p2pStatsManager {
	c, _ := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters:        100,
		MaxCost:            10,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	return &p2pStatsManager{cache: c}
}

func (m *p2pStatsManager) getSnapshot() *StatsSnapshot {
	if m == nil || m.cache == nil {
		return nil
	}
	v, ok := m.cache.Get(p2pStatsLKGKey)
	if !ok {
		return nil
	}
	snap, _ := v.(*StatsSnapshot)
	return snap
}

func (m *p2pStatsManager) setSnapshot(snap *StatsSnapshot) bool {
	if m == nil || m.cache == nil || snap == nil {
		return false
	}
	ok := m.cache.SetWithTTL(p2pStatsLKGKey, snap, 1, p2pStatsCacheKeepAlive)
	m.cache.Wait()
	return ok
}

func (m *p2pStatsManager) isFresh() bool {
	if m == nil || m.cache == nil {
		return false
	}
	_, ok := m.cache.Get(p2pStatsFreshKey)
	return ok
}

func (m *p2pStatsManager) markFresh() bool {
	if m == nil || m.cache == nil {
		return false
	}
	ok := m.cache.SetWithTTL(p2pStatsFreshKey, true, 1, p2pStatsFreshTTL)
	m.cache.Wait()
	return ok
}

// Stats returns immediately from the cached snapshot. Identity and peer count are read
// on every call and never written back; heavy diagnostics are refreshed in the
// background at most once per p2pStatsFreshTTL, deduplicated across concurrent callers.
func (m *p2pStatsManager) Stats(ctx context.Context, p *p2p) (*StatsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := m.getSnapshot().clone()
	if p != nil && p.dht != nil {
		self := p.dht.Self()
		snap.Self = self.String()
		snap.Address = self.Address()
		snap.PeersCount = p.dht.NodesLen()
	}

	if !m.isFresh() {
		m.maybeRefreshDiagnostics(ctx, p)
	}

	return snap, nil
}

func (m *p2pStatsManager) maybeRefreshDiagnostics(ctx context.Context, p *p2p) {
	if m == nil || p == nil {
		return
	}
	if !m.refreshInFlight.CompareAndSwap(false, true) {
		return
	}

	logCtx := context.WithoutCancel(ctx)
	go func() {
		defer m.refreshInFlight.Store(false)

		start := time.Now()
		_, err, _ := m.sf.Do("p2p_stats/refresh_diagnostics", func() (any, error) {
			refreshCtx, cancel := context.WithTimeout(context.Background(), p2pStatsRefreshTimeout)
			defer cancel()
			return nil, m.refreshDiagnostics(refreshCtx, p)
		})
		dur := time.Since(start)

		if err != nil {
			logtrace.Warn(logCtx, "p2p stats diagnostics refresh failed", logtrace.Fields{
				logtrace.FieldModule: logPrefix,
				"ms":                 dur.Milliseconds(),
				logtrace.FieldError:  err.Error(),
			})
		}
		if dur > p2pStatsSlowRefreshThreshold {
			logtrace.Warn(logCtx, "p2p stats diagnostics refresh slow", logtrace.Fields{
				logtrace.FieldModule: logPrefix,
				"ms":                 dur.Milliseconds(),
			})
		}
	}()
}

func (m *p2pStatsManager) refreshDiagnostics(ctx context.Context, p *p2p) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := m.getSnapshot().clone()
	var refreshErr error

	if p != nil && p.dht != nil {
		dhtStats, err := p.dht.Stats(ctx)
		if err != nil {
			refreshErr = err
		} else {
			next.PeersCount = dhtStats.PeersCount
			next.Peers = dhtStats.Peers
			next.BanList = dhtStats.BanList
			next.NetworkHandleMetrics = dhtStats.Network
			next.DHTMetrics = dhtStats.Metrics
			next.Database = dhtStats.Database
			next.RecentStores = dhtStats.RecentStores
			next.RecentRetrieves = dhtStats.RecentRetrieves
		}
	}

	if p != nil && p.config != nil && !p.config.InMemory {
		diskUse, err := utils.DiskUsage(p.config.DataDir)
		if err != nil {
			if refreshErr == nil {
				refreshErr = err
			}
		} else {
			next.DiskInfo = &diskUse
		}
	}

	if !m.setSnapshot(next) || !m.markFresh() {
		return errors.New("p2p stats cache rejected snapshot")
	}
	return refreshErr
}
