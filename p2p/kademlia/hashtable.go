package kademlia

import (
	"bytes"
	"crypto/rand"
	"math/bits"
	"sync"
	"time"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const (
	// B is the number of bits in a node id
	B = utils.HashSize * 8

	// K is the bucket size and replication factor
	K = 20

	// Alpha is the lookup parallelism
	Alpha = 3
)

// HashTable is the routing table: B buckets of at most K nodes each, least recently seen first
type HashTable struct {
	// the local node
	self *Node

	// routing table
	mutex      sync.RWMutex
	routeTable [][]*Node

	// last time each bucket was looked up
	refreshers []time.Time
}

// NewHashTable returns a routing table for the local node described by options
func NewHashTable(options *Options) (*HashTable, error) {
	id := options.ID
	if len(id) == 0 {
		id = make([]byte, utils.HashSize)
		if _, err := rand.Read(id); err != nil {
			return nil, errors.Errorf("generate node id: %w", err)
		}
	}
	if len(id) != utils.HashSize {
		return nil, errors.Errorf("node id must be %d bytes, got %d", utils.HashSize, len(id))
	}

	ht := &HashTable{
		self: &Node{
			ID:      id,
			IP:      options.IP,
			Port:    options.Port,
			Version: localVersion(),
		},
		routeTable: make([][]*Node, B),
		refreshers: make([]time.Time, B),
	}
	now := time.Now().UTC()
	for i := range ht.refreshers {
		ht.refreshers[i] = now
	}
	return ht, nil
}

// bucketIndex returns the bucket for id2 as seen from id1: the position of the
// highest differing bit, counted from the least significant end
func (ht *HashTable) bucketIndex(id1, id2 []byte) int {
	for i := 0; i < len(id1) && i < len(id2); i++ {
		if x := id1[i] ^ id2[i]; x != 0 {
			return (len(id1)-1-i)*8 + (7 - bits.LeadingZeros8(x))
		}
	}
	return 0
}

func (ht *HashTable) resetRefreshTime(bucket int) {
	ht.mutex.Lock()
	defer ht.mutex.Unlock()
	ht.refreshers[bucket] = time.Now().UTC()
}

func (ht *HashTable) refreshTime(bucket int) time.Time {
	ht.mutex.RLock()
	defer ht.mutex.RUnlock()
	return ht.refreshers[bucket]
}

// randomIDFromBucket returns a random id that falls into the given bucket
func (ht *HashTable) randomIDFromBucket(bucket int) []byte {
	id := make([]byte, len(ht.self.ID))
	_, _ = rand.Read(id)

	byteIdx := len(id) - 1 - bucket/8
	bit := uint(bucket % 8)

	copy(id[:byteIdx], ht.self.ID[:byteIdx])
	// keep the bits above the target bit, flip the target bit
	mask := byte(0xff) << (bit + 1)
	id[byteIdx] = (ht.self.ID[byteIdx] & mask) | ((^ht.self.ID[byteIdx]) & (1 << bit)) | (id[byteIdx] & ((1 << bit) - 1))
	return id
}

// add inserts or refreshes a node. It returns false when the bucket is full.
func (ht *HashTable) add(node *Node) bool {
	if bytes.Equal(node.ID, ht.self.ID) {
		return false
	}
	idx := ht.bucketIndex(ht.self.ID, node.ID)

	ht.mutex.Lock()
	defer ht.mutex.Unlock()

	bucket := ht.routeTable[idx]
	for i, n := range bucket {
		if bytes.Equal(n.ID, node.ID) {
			// move to the tail, keeping the freshest address
			bucket = append(bucket[:i], bucket[i+1:]...)
			ht.routeTable[idx] = append(bucket, node)
			return true
		}
	}
	if len(bucket) >= K {
		return false
	}
	ht.routeTable[idx] = append(bucket, node)
	return true
}

// leastRecentlySeen returns the head of the bucket the node falls into
func (ht *HashTable) leastRecentlySeen(id []byte) *Node {
	idx := ht.bucketIndex(ht.self.ID, id)

	ht.mutex.RLock()
	defer ht.mutex.RUnlock()
	if len(ht.routeTable[idx]) == 0 {
		return nil
	}
	return ht.routeTable[idx][0]
}

// replace swaps old for node in old's bucket
func (ht *HashTable) replace(old, node *Node) bool {
	idx := ht.bucketIndex(ht.self.ID, old.ID)

	ht.mutex.Lock()
	defer ht.mutex.Unlock()
	for i, n := range ht.routeTable[idx] {
		if bytes.Equal(n.ID, old.ID) {
			bucket := append(ht.routeTable[idx][:i], ht.routeTable[idx][i+1:]...)
			ht.routeTable[idx] = append(bucket, node)
			return true
		}
	}
	return false
}

// remove deletes the node with the given id
func (ht *HashTable) remove(id []byte) bool {
	idx := ht.bucketIndex(ht.self.ID, id)

	ht.mutex.Lock()
	defer ht.mutex.Unlock()
	for i, n := range ht.routeTable[idx] {
		if bytes.Equal(n.ID, id) {
			ht.routeTable[idx] = append(ht.routeTable[idx][:i], ht.routeTable[idx][i+1:]...)
			return true
		}
	}
	return false
}

// closestContacts returns up to num nodes closest to target, skipping ignored ones
func (ht *HashTable) closestContacts(num int, target []byte, ignored []*Node) *NodeList {
	ht.mutex.RLock()
	defer ht.mutex.RUnlock()

	skip := make(map[string]bool, len(ignored))
	for _, node := range ignored {
		skip[string(node.ID)] = true
	}

	nl := &NodeList{Comparator: target}
	for _, bucket := range ht.routeTable {
		for _, node := range bucket {
			if !skip[string(node.ID)] {
				nl.Nodes = append(nl.Nodes, node)
			}
		}
	}
	nl.Sort()
	nl.TopN(num)
	return nl
}

// closestContactsWithSelf is closestContacts with the local node taking part in the ranking
func (ht *HashTable) closestContactsWithSelf(num int, target []byte, ignored []*Node) *NodeList {
	nl := ht.closestContacts(B*K, target, ignored)
	nl.AddNodes([]*Node{ht.self})
	nl.Sort()
	nl.TopN(num)
	return nl
}

// nodes returns a snapshot of every node in the table
func (ht *HashTable) nodes() []*Node {
	ht.mutex.RLock()
	defer ht.mutex.RUnlock()

	var out []*Node
	for _, bucket := range ht.routeTable {
		out = append(out, bucket...)
	}
	return out
}

func (ht *HashTable) totalCount() int {
	ht.mutex.RLock()
	defer ht.mutex.RUnlock()

	n := 0
	for _, bucket := range ht.routeTable {
		n += len(bucket)
	}
	return n
}
