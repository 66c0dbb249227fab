// Package sqlite is the persistent record store of a DHT node.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const (
	dbName = "data001.sqlite3"

	// values at least this large are stored zstd-compressed
	compressThreshold = 1024
)

const createDataTable = `
CREATE TABLE IF NOT EXISTS data (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	is_compressed BOOLEAN NOT NULL DEFAULT FALSE,
	createdAt DATETIME NOT NULL,
	updatedAt DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_data_updated_at ON data(updatedAt);
`

// Store is a sqlite backed record store
type Store struct {
	db      *sqlx.DB
	dbPath  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

type dataRow struct {
	Key          string    `db:"key"`
	Data         []byte    `db:"data"`
	IsCompressed bool      `db:"is_compressed"`
	CreatedAt    time.Time `db:"createdAt"`
	UpdatedAt    time.Time `db:"updatedAt"`
}

// NewStore opens (or creates) the record database under dataDir
func NewStore(ctx context.Context, dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, errors.Errorf("create data dir %s: %w", dataDir, err)
	}
	dbPath := filepath.Join(dataDir, dbName)

	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, errors.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.ExecContext(ctx, createDataTable); err != nil {
		_ = db.Close()
		return nil, errors.Errorf("create data table: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, errors.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, errors.Errorf("create zstd decoder: %w", err)
	}

	logtrace.Debug(ctx, "sqlite store opened", logtrace.Fields{logtrace.FieldModule: "p2p", "path": dbPath})
	return &Store{db: db, dbPath: dbPath, encoder: encoder, decoder: decoder}, nil
}

// Store writes value under key. A rewrite keeps the original createdAt.
func (s *Store) Store(ctx context.Context, key []byte, value []byte) error {
	data, compressed := value, false
	if len(value) >= compressThreshold {
		data, compressed = s.encoder.EncodeAll(value, nil), true
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO data (key, data, is_compressed, createdAt, updatedAt) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, is_compressed = excluded.is_compressed, updatedAt = excluded.updatedAt`,
		hex.EncodeToString(key), data, compressed, now, now)
	if err != nil {
		return errors.Errorf("store record: %w", err)
	}
	return nil
}

// Retrieve returns the record under key or domain.ErrNotFound
func (s *Store) Retrieve(ctx context.Context, key []byte) (*domain.Record, error) {
	var row dataRow
	err := s.db.GetContext(ctx, &row, `SELECT key, data, is_compressed, createdAt, updatedAt FROM data WHERE key = ?`, hex.EncodeToString(key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Errorf("retrieve record: %w", err)
	}

	value := row.Data
	if row.IsCompressed {
		value, err = s.decoder.DecodeAll(row.Data, nil)
		if err != nil {
			return nil, errors.Errorf("decompress record: %w", err)
		}
	}
	return &domain.Record{Key: key, Value: value, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

// Count returns the number of records
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM data`); err != nil {
		return 0, errors.Errorf("count records: %w", err)
	}
	return count, nil
}

// Stats returns the record count and the on-disk size of the database
func (s *Store) Stats(ctx context.Context) (domain.DatabaseStats, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return domain.DatabaseStats{}, err
	}

	var size int64
	for _, path := range []string{s.dbPath, s.dbPath + "-wal"} {
		if fi, err := os.Stat(path); err == nil {
			size += fi.Size()
		}
	}
	return domain.DatabaseStats{RecordsCount: count, SizeMB: utils.BytesToMB(uint64(size))}, nil
}

// Close the store
func (s *Store) Close(ctx context.Context) {
	s.encoder.Close()
	s.decoder.Close()
	if err := s.db.Close(); err != nil {
		logtrace.Error(ctx, "close sqlite store", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
	}
}
