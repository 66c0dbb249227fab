package kademlia

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const maxReplicationKeys = 10000

var (
	// defaultReplicationInterval is the default interval for replication.
	defaultReplicationInterval = time.Minute * 10

	maxBackOff = 45 * time.Second
)

// StartReplicationWorker refreshes stale buckets and republishes records until ctx is done
func (s *DHT) StartReplicationWorker(ctx context.Context) {
	logtrace.Debug(ctx, "replication worker started", logtrace.Fields{logtrace.FieldModule: "p2p"})

	ticker := time.NewTicker(defaultReplicationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshBuckets(ctx)
			s.Replicate(ctx)
		case <-ctx.Done():
			logtrace.Info(ctx, "closing replication worker", logtrace.Fields{logtrace.FieldModule: "p2p"})
			return
		}
	}
}

func (s *DHT) refreshBuckets(ctx context.Context) {
	if s.ht.totalCount() == 0 {
		return
	}
	for i := 0; i < B; i++ {
		if ctx.Err() != nil {
			return
		}
		if time.Since(s.ht.refreshTime(i)) > defaultRefreshTime {
			s.iterate(ctx, FindNode, s.ht.randomIDFromBucket(i), nil)
		}
	}
}

// Replicate pushes every local record written since a peer's replication cursor to that
// peer, when the peer is among the K nodes closest to the record's key.
func (s *DHT) Replicate(ctx context.Context) {
	peers := s.ht.nodes()
	if len(peers) == 0 {
		return
	}

	peerStart := make(map[string]time.Time, len(peers))
	byID := make(map[string]*Node, len(peers))
	s.replicationMtx.Lock()
	var from time.Time
	for i, node := range peers {
		start := s.lastReplicated[string(node.ID)]
		peerStart[string(node.ID)] = start
		byID[string(node.ID)] = node
		if i == 0 || start.Before(from) {
			from = start
		}
	}
	s.replicationMtx.Unlock()

	to := time.Now().UTC()
	keys := s.store.GetKeysForReplication(ctx, from, to, maxReplicationKeys)
	if keys == nil {
		// nil means the scan failed; never advance cursors in that case
		logtrace.Error(ctx, "get keys for replication failed; skipping round", logtrace.Fields{logtrace.FieldModule: "p2p"})
		return
	}
	if len(keys) >= maxReplicationKeys {
		// resume from the last key on the next round
		to = keys[len(keys)-1].UpdatedAt
	}

	ignores := s.ignorelist.ToNodeList()
	assignments := assignReplicationKeysToPeers(ctx, keys, peerStart, func(key []byte) [][]byte {
		return s.ht.closestContactsWithSelf(K, utils.Blake3Hash(key), ignores).NodeIDs()
	})

	for id, node := range byID {
		if ctx.Err() != nil {
			return
		}
		assigned := assignments[id]
		if len(assigned) > 0 {
			if err := s.replicateToNode(ctx, node, assigned); err != nil {
				logtrace.Warn(ctx, "replicate to node failed", logtrace.Fields{
					logtrace.FieldModule: "p2p",
					logtrace.FieldPeer:   node.String(),
					logtrace.FieldError:  err.Error(),
					"keys":               len(assigned),
				})
				continue
			}
		}
		s.setReplicationCursor(node, to)
	}

	logtrace.Debug(ctx, "Replication done", logtrace.Fields{
		logtrace.FieldModule: "p2p",
		"keys":               len(keys),
		"peers":              len(peers),
	})
}

func (s *DHT) replicateToNode(ctx context.Context, node *Node, hexKeys []string) error {
	for _, hk := range hexKeys {
		key, err := hex.DecodeString(hk)
		if err != nil {
			continue
		}
		record, err := s.store.Retrieve(ctx, key)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.Errorf("retrieve %s: %w", hk, err)
		}

		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = maxBackOff
		err = backoff.RetryNotify(func() error {
			return s.sendStoreData(ctx, node, key, record.Value)
		}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
			logtrace.Debug(ctx, "retrying replicate store", logtrace.Fields{
				logtrace.FieldModule: "p2p",
				logtrace.FieldPeer:   node.String(),
				logtrace.FieldError:  err.Error(),
				"duration":           d,
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *DHT) setReplicationCursor(node *Node, to time.Time) {
	s.replicationMtx.Lock()
	defer s.replicationMtx.Unlock()
	if _, ok := s.lastReplicated[string(node.ID)]; ok {
		s.lastReplicated[string(node.ID)] = to
	}
}

// assignReplicationKeysToPeers maps each peer id to the keys it should hold that were
// written strictly after its cursor, preserving key order.
func assignReplicationKeysToPeers(ctx context.Context, keys domain.KeysWithTimestamp, peerStart map[string]time.Time, closestFn func(key []byte) [][]byte) map[string][]string {
	out := make(map[string][]string)
	for _, k := range keys {
		if ctx.Err() != nil {
			break
		}
		decoded, err := hex.DecodeString(k.Key)
		if err != nil {
			continue
		}
		for _, id := range closestFn(decoded) {
			start, ok := peerStart[string(id)]
			if !ok {
				continue
			}
			if k.UpdatedAt.After(start) {
				out[string(id)] = append(out[string(id)], k.Key)
			}
		}
	}
	return out
}
