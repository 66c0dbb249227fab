package sqlite

import (
	"context"
	"time"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

type keyRow struct {
	Key       string    `db:"key"`
	UpdatedAt time.Time `db:"updatedAt"`
}

// GetKeysForReplication returns keys updated in (from, to), oldest first and by key within
// a timestamp. When maxKeys is hit, every other key sharing the last timestamp is included so
// that a cursor advanced to that timestamp never skips one. It returns nil on failure.
func (s *Store) GetKeysForReplication(ctx context.Context, from time.Time, to time.Time, maxKeys int) domain.KeysWithTimestamp {
	if ctx.Err() != nil {
		return nil
	}
	limit := maxKeys
	if limit <= 0 {
		limit = -1
	}

	var rows []keyRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT key, updatedAt FROM data WHERE updatedAt > ? AND updatedAt < ? ORDER BY updatedAt ASC, key ASC LIMIT ?`,
		from.UTC(), to.UTC(), limit); err != nil {
		logtrace.Error(ctx, "get keys for replication", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
		return nil
	}

	if maxKeys > 0 && len(rows) == maxKeys {
		last := rows[len(rows)-1]
		var extra []keyRow
		if err := s.db.SelectContext(ctx, &extra,
			`SELECT key, updatedAt FROM data WHERE updatedAt = ? AND key > ? ORDER BY key ASC`,
			last.UpdatedAt.UTC(), last.Key); err != nil {
			logtrace.Error(ctx, "get boundary keys for replication", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
			return nil
		}
		rows = append(rows, extra...)
	}

	keys := make(domain.KeysWithTimestamp, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, domain.KeyWithTimestamp{Key: r.Key, UpdatedAt: r.UpdatedAt})
	}
	return keys
}
