package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFindFirstAfter(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	keys := KeysWithTimestamp{
		{Key: "00", UpdatedAt: t0},
		{Key: "01", UpdatedAt: t0.Add(time.Second)},
		{Key: "02", UpdatedAt: t0.Add(2 * time.Second)},
	}

	assert.Equal(t, 0, keys.FindFirstAfter(t0.Add(-time.Second)))
	assert.Equal(t, 1, keys.FindFirstAfter(t0))
	assert.Equal(t, 2, keys.FindFirstAfter(t0.Add(time.Second)))
	assert.Equal(t, -1, keys.FindFirstAfter(t0.Add(2*time.Second)))
	assert.Equal(t, -1, KeysWithTimestamp(nil).FindFirstAfter(t0))
}
