// Package domain holds the types shared between the DHT and its record stores.
package domain

import (
	"sort"
	"time"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
)

// ErrNotFound is returned by stores and the DHT when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// Record is a value held under a key.
type Record struct {
	Key       []byte
	Value     []byte
	Publisher string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeyWithTimestamp is a hex-encoded store key with its last write time.
type KeyWithTimestamp struct {
	Key       string
	UpdatedAt time.Time
}

// KeysWithTimestamp is ordered by UpdatedAt ascending.
type KeysWithTimestamp []KeyWithTimestamp

// FindFirstAfter returns the index of the first key written strictly after t, or -1.
func (k KeysWithTimestamp) FindFirstAfter(t time.Time) int {
	idx := sort.Search(len(k), func(i int) bool {
		return k[i].UpdatedAt.After(t)
	})
	if idx == len(k) {
		return -1
	}
	return idx
}

// DatabaseStats describes the local record store.
type DatabaseStats struct {
	RecordsCount int     `json:"records_count"`
	SizeMB       float64 `json:"size_mb"`
}
