package kademlia

import (
	"bytes"
	"fmt"
	"math/big"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// Node is the over-the-wire representation of a peer
type Node struct {
	// id is a 32 byte unique identifier
	ID []byte `json:"id,omitempty"`

	// ip address of the node
	IP string `json:"ip,omitempty"`

	// port of the node
	Port uint16 `json:"port,omitempty"`

	// Version of the peer software
	Version string `json:"version,omitempty"`
}

func (s *Node) String() string {
	return fmt.Sprintf("%v-%v:%d", base58.Encode(s.ID), s.IP, s.Port)
}

// Address returns the dialable host:port of the node.
func (s *Node) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(int(s.Port)))
}

// NodeList is used in order to sort a list of nodes by distance to a target
type NodeList struct {
	Nodes []*Node

	// Comparator is the id to compare to
	Comparator []byte
}

// String returns the dump information for node list
func (s *NodeList) String() string {
	nodes := make([]string, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		nodes = append(nodes, node.String())
	}
	return strings.Join(nodes, ",")
}

// Len returns the length of node list
func (s *NodeList) Len() int {
	return len(s.Nodes)
}

// Exists reports whether a node with the same id is already present
func (s *NodeList) Exists(node *Node) bool {
	for _, item := range s.Nodes {
		if bytes.Equal(item.ID, node.ID) {
			return true
		}
	}
	return false
}

// AddNodes appends the nodes to node list if they don't exist
func (s *NodeList) AddNodes(nodes []*Node) {
	for _, node := range nodes {
		if node == nil || len(node.ID) == 0 {
			continue
		}
		if !s.Exists(node) {
			s.Nodes = append(s.Nodes, node)
		}
	}
}

// DelNode removes the node with the same id
func (s *NodeList) DelNode(node *Node) {
	for i, item := range s.Nodes {
		if bytes.Equal(item.ID, node.ID) {
			s.Nodes = append(s.Nodes[:i], s.Nodes[i+1:]...)
			return
		}
	}
}

// Sort orders the nodes by XOR distance to the comparator, closest first
func (s *NodeList) Sort() {
	sort.SliceStable(s.Nodes, func(i, j int) bool {
		return distance(s.Nodes[i].ID, s.Comparator).Cmp(distance(s.Nodes[j].ID, s.Comparator)) < 0
	})
}

// TopN keeps the first n nodes
func (s *NodeList) TopN(n int) {
	if n < len(s.Nodes) {
		s.Nodes = s.Nodes[:n]
	}
}

// NodeIDs returns the ids of the nodes in list order
func (s *NodeList) NodeIDs() [][]byte {
	ids := make([][]byte, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

// distance returns the XOR distance between two ids
func distance(id1, id2 []byte) *big.Int {
	n := len(id1)
	if len(id2) > n {
		n = len(id2)
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		var a, b byte
		if i < len(id1) {
			a = id1[i]
		}
		if i < len(id2) {
			b = id2[i]
		}
		buf[i] = a ^ b
	}
	return new(big.Int).SetBytes(buf)
}
