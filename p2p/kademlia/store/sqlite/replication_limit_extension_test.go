//go:build !race
// +build !race

package sqlite

import (
	"context"
	"testing"
	"time"
)

func TestGetKeysForReplication_LimitNotHit_ReturnsAllOrdered(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mustInsertDataRow(t, store, "01", ts)
	mustInsertDataRow(t, store, "00", ts)

	keys := store.GetKeysForReplication(context.Background(), ts.Add(-time.Second), ts.Add(time.Second), 10)
	if keys == nil {
		t.Fatalf("expected non-nil keys")
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].Key != "00" || keys[1].Key != "01" {
		t.Fatalf("unexpected order: %q, %q", keys[0].Key, keys[1].Key)
	}
}

func TestGetKeysForReplication_LimitHit_NoSameTimestampExtras(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := ts.Add(time.Second)

	mustInsertDataRow(t, store, "00", ts)
	mustInsertDataRow(t, store, "01", ts)
	mustInsertDataRow(t, store, "02", ts2)

	keys := store.GetKeysForReplication(context.Background(), ts.Add(-time.Second), ts2.Add(time.Second), 2)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].Key != "00" || keys[1].Key != "01" {
		t.Fatalf("unexpected keys/order: %q, %q", keys[0].Key, keys[1].Key)
	}
}

func TestGetKeysForReplication_LimitHit_IncludesAllSameTimestampKeys(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := ts.Add(time.Second)

	// maxKeys=2 but every key at the boundary timestamp is expected
	mustInsertDataRow(t, store, "00", ts)
	mustInsertDataRow(t, store, "01", ts)
	mustInsertDataRow(t, store, "02", ts)
	mustInsertDataRow(t, store, "ff", ts2)

	keys := store.GetKeysForReplication(context.Background(), ts.Add(-time.Second), ts2.Add(time.Second), 2)
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys (limit extension), got %d", len(keys))
	}
	if keys[0].Key != "00" || keys[1].Key != "01" || keys[2].Key != "02" {
		t.Fatalf("unexpected keys/order: %q, %q, %q", keys[0].Key, keys[1].Key, keys[2].Key)
	}
	for i, k := range keys {
		if !k.UpdatedAt.Equal(ts) {
			t.Fatalf("key %d: expected boundary timestamp, got %v", i, k.UpdatedAt)
		}
	}
}

func TestGetKeysForReplication_ExcludesWindowEdges(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mustInsertDataRow(t, store, "00", ts)
	mustInsertDataRow(t, store, "01", ts.Add(time.Second))
	mustInsertDataRow(t, store, "02", ts.Add(2*time.Second))

	keys := store.GetKeysForReplication(context.Background(), ts, ts.Add(2*time.Second), 10)
	if len(keys) != 1 || keys[0].Key != "01" {
		t.Fatalf("expected only the key strictly inside the window, got %#v", keys)
	}
}

func TestGetKeysForReplication_CanceledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	keys := store.GetKeysForReplication(ctx, time.Now().Add(-time.Hour), time.Now(), 10)
	if keys != nil {
		t.Fatalf("expected nil on canceled context, got len=%d", len(keys))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func mustInsertDataRow(t *testing.T, store *Store, key string, updatedAt time.Time) {
	t.Helper()
	// only key and updatedAt matter for replication scans, but data is NOT NULL
	_, err := store.db.Exec(
		`INSERT INTO data (key, data, is_compressed, createdAt, updatedAt) VALUES (?, ?, ?, ?, ?)`,
		key,
		[]byte("x"),
		false,
		updatedAt,
		updatedAt,
	)
	if err != nil {
		t.Fatalf("insert data row: %v", err)
	}
}
