package kademlia

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanListThreshold(t *testing.T) {
	list := NewBanList()
	node := &Node{ID: bytes.Repeat([]byte{9}, 32), IP: "10.0.0.9", Port: 4445}

	for i := 0; i < threshold; i++ {
		list.IncrementCount(node)
		assert.False(t, list.Banned(node), "banned after %d failures", i+1)
	}
	assert.Equal(t, threshold+1, list.IncrementCount(node))
	assert.True(t, list.Banned(node))
	require.Len(t, list.ToNodeList(), 1)

	list.Delete(node)
	assert.False(t, list.Banned(node))
	assert.Empty(t, list.ToNodeList())
}

func TestBanListSnapshotOrder(t *testing.T) {
	list := NewBanList()
	a := &Node{ID: bytes.Repeat([]byte{1}, 32), IP: "10.0.0.1", Port: 1}
	b := &Node{ID: bytes.Repeat([]byte{2}, 32), IP: "10.0.0.2", Port: 2}

	list.IncrementCount(a)
	list.IncrementCount(b)
	list.IncrementCount(b)

	snap := list.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "10.0.0.2", snap[0].IP)
	assert.Equal(t, 2, snap[0].Count)
	assert.Equal(t, 1, snap[1].Count)
}

func TestBanListKeysByAddressWithoutID(t *testing.T) {
	list := NewBanList()
	node := &Node{IP: "10.0.0.3", Port: 4445}

	for i := 0; i <= threshold; i++ {
		list.IncrementCount(node)
	}
	assert.True(t, list.Banned(&Node{IP: "10.0.0.3", Port: 4445}))
}
