package kademlia

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// threshold is the number of consecutive failures after which a node is banned
	threshold = 3

	// banDuration is how long a node stays on the list after its last failure
	banDuration = 30 * time.Minute

	banCleanupInterval = 5 * time.Minute
)

type banEntry struct {
	node      *Node
	count     int
	createdAt time.Time
}

// BanSnapshot is a read-only view of one ban list entry
type BanSnapshot struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Port      uint16    `json:"port"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
	AgeSecs   int64     `json:"age_seconds"`
}

// BanList counts call failures per node and bans nodes that keep failing
type BanList struct {
	mtx   sync.Mutex
	cache *gocache.Cache
}

// NewBanList returns an empty ban list
func NewBanList() *BanList {
	return &BanList{cache: gocache.New(banDuration, banCleanupInterval)}
}

func banKey(node *Node) string {
	if len(node.ID) > 0 {
		return hex.EncodeToString(node.ID)
	}
	return node.Address()
}

// IncrementCount records a failure for the node
func (s *BanList) IncrementCount(node *Node) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	key := banKey(node)
	entry := &banEntry{node: node, createdAt: time.Now().UTC()}
	if v, ok := s.cache.Get(key); ok {
		entry = v.(*banEntry)
	}
	entry.count++
	s.cache.Set(key, entry, gocache.DefaultExpiration)
	return entry.count
}

// Banned reports whether the node failed more than threshold times
func (s *BanList) Banned(node *Node) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	v, ok := s.cache.Get(banKey(node))
	if !ok {
		return false
	}
	return v.(*banEntry).count > threshold
}

// Delete clears the failure count of the node
func (s *BanList) Delete(node *Node) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.cache.Delete(banKey(node))
}

// ToNodeList returns the currently banned nodes
func (s *BanList) ToNodeList() []*Node {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var nodes []*Node
	for _, item := range s.cache.Items() {
		entry := item.Object.(*banEntry)
		if entry.count > threshold {
			nodes = append(nodes, entry.node)
		}
	}
	return nodes
}

// Snapshot returns every tracked node ordered by failure count, highest first
func (s *BanList) Snapshot() []BanSnapshot {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := time.Now().UTC()
	out := make([]BanSnapshot, 0, s.cache.ItemCount())
	for key, item := range s.cache.Items() {
		entry := item.Object.(*banEntry)
		out = append(out, BanSnapshot{
			ID:        key,
			IP:        entry.node.IP,
			Port:      entry.node.Port,
			Count:     entry.count,
			CreatedAt: entry.createdAt,
			AgeSecs:   int64(now.Sub(entry.createdAt).Seconds()),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out
}
