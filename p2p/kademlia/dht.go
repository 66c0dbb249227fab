package kademlia

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const (
	defaultNetworkAddr  = "0.0.0.0"
	defaultRefreshTime  = time.Hour
	defaultIterateLimit = 10 * time.Second

	maxIterations                  = 4
	maxConcurrentNetworkStoreCalls = 8
	storeSuccessRecentLimit        = 20
)

var (
	// ErrEmptyKey is returned for operations on an empty key
	ErrEmptyKey = errors.New("empty key")
	// ErrStoreQuorum is returned when peers exist but none accepted a record
	ErrStoreQuorum = errors.New("no peer accepted the record")
)

// DHT represents the state of the local node in the distributed hash table
type DHT struct {
	ht         *HashTable // the hashtable for routing
	options    *Options   // the options of DHT
	network    *Network   // the network of DHT
	store      Store      // the storage of DHT
	ignorelist *BanList

	replicationMtx sync.Mutex
	lastReplicated map[string]time.Time // node id -> replication cursor

	metrics DHTMetrics
}

// Options contains configuration options for the local node
type Options struct {
	// ID is the 32 byte node id; random when empty
	ID []byte

	// IP is the address to listen on
	IP string

	// ExternalIP is the address advertised to peers; defaults to IP
	ExternalIP string

	// Port to listen on; 0 picks an ephemeral port
	Port uint16

	// The nodes being used to bootstrap the network. Without a bootstrap
	// node there is no way to connect to the network
	BootstrapNodes []*Node

	// InboundRate caps handled requests per second; 0 means unlimited
	InboundRate int
}

// ParseBootstrapNodes parses a comma separated list of host:port addresses
func ParseBootstrapNodes(list string) ([]*Node, error) {
	var nodes []*Node
	for _, raw := range strings.Split(list, ",") {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Errorf("bootstrap node %q: %w", addr, err)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil || port == 0 {
			return nil, errors.Errorf("bootstrap node %q: invalid port", addr)
		}
		if host == "" {
			return nil, errors.Errorf("bootstrap node %q: missing host", addr)
		}
		nodes = append(nodes, &Node{IP: host, Port: uint16(port)})
	}
	return nodes, nil
}

// NewDHT returns a new DHT node
func NewDHT(ctx context.Context, store Store, options *Options) (*DHT, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	// validate the options, if it's invalid, set them to default value
	if options.IP == "" {
		options.IP = defaultNetworkAddr
	}

	ht, err := NewHashTable(options)
	if err != nil {
		return nil, errors.Errorf("new hashtable: %w", err)
	}
	if options.ExternalIP != "" {
		ht.self.IP = options.ExternalIP
	}

	s := &DHT{
		ht:             ht,
		options:        options,
		store:          store,
		ignorelist:     NewBanList(),
		lastReplicated: make(map[string]time.Time),
	}
	s.network = NewNetwork(s, ht.self, options.InboundRate)

	logtrace.Debug(ctx, "DHT created", logtrace.Fields{
		logtrace.FieldModule: "p2p",
		"node":               ht.self.String(),
		"bootstrap_nodes":    len(options.BootstrapNodes),
	})
	return s, nil
}

// Self returns the local node
func (s *DHT) Self() *Node {
	return s.ht.self
}

// NodesLen returns the number of peers in the routing table
func (s *DHT) NodesLen() int {
	return s.ht.totalCount()
}

// Start the network, join through the bootstrap nodes and run the replication worker until ctx is done
func (s *DHT) Start(ctx context.Context) error {
	if err := s.network.Start(ctx); err != nil {
		return errors.Errorf("start network: %w", err)
	}

	if err := s.Bootstrap(ctx); err != nil {
		logtrace.Warn(ctx, "DHT bootstrap incomplete", logtrace.Fields{
			logtrace.FieldModule: "p2p",
			logtrace.FieldError:  err.Error(),
		})
	}

	go s.StartReplicationWorker(ctx)
	return nil
}

// Stop the distributed hash table
func (s *DHT) Stop(ctx context.Context) {
	s.network.Stop(ctx)
}

// Bootstrap pings every bootstrap node and then looks up the local id to fill the routing table
func (s *DHT) Bootstrap(ctx context.Context) error {
	if len(s.options.BootstrapNodes) == 0 {
		return nil
	}

	var reached int
	for _, node := range s.options.BootstrapNodes {
		if node.Port == s.ht.self.Port && (node.IP == s.ht.self.IP || isLocalAddress(node.IP)) {
			continue
		}
		response, err := s.network.Call(ctx, s.newMessage(ctx, Ping, node, &PingRequest{SentAt: time.Now().UnixNano()}))
		if err != nil {
			logtrace.Warn(ctx, "Bootstrap node unreachable", logtrace.Fields{
				logtrace.FieldModule:  "p2p",
				logtrace.FieldAddress: node.Address(),
				logtrace.FieldError:   err.Error(),
			})
			continue
		}
		s.addNode(ctx, response.Sender)
		reached++
	}

	if reached == 0 {
		return errors.Errorf("none of %d bootstrap nodes reachable", len(s.options.BootstrapNodes))
	}

	s.iterate(ctx, FindNode, s.ht.self.ID, nil)
	logtrace.Info(ctx, "DHT bootstrap done", logtrace.Fields{
		logtrace.FieldModule: "p2p",
		"peers":              s.ht.totalCount(),
	})
	return nil
}

func isLocalAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && (parsed.IsLoopback() || parsed.IsUnspecified())
}

func (s *DHT) retryStore(ctx context.Context, key []byte, data []byte) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 1 * time.Minute
	b.InitialInterval = 200 * time.Millisecond

	return backoff.Retry(func() error {
		return s.store.Store(ctx, key, data)
	}, backoff.WithContext(b, ctx))
}

// Put stores value under key locally and on the K closest peers. When peers are known
// but none accepts the record it returns ErrStoreQuorum and the local copy stays.
func (s *DHT) Put(ctx context.Context, key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	if err := s.retryStore(ctx, key, value); err != nil {
		logtrace.Error(ctx, "Local data store failure after retries", logtrace.Fields{
			logtrace.FieldModule: "dht",
			logtrace.FieldKey:    string(key),
			logtrace.FieldError:  err.Error(),
		})
		return errors.Errorf("store locally: %w", err)
	}

	nl, _, _ := s.iterate(ctx, FindNode, utils.Blake3Hash(key), nil)
	if nl.Len() == 0 {
		logtrace.Debug(ctx, "No peers to store to, kept local copy only", logtrace.Fields{
			logtrace.FieldModule: "dht",
			logtrace.FieldKey:    string(key),
		})
		return nil
	}

	stored := s.storeToNodes(ctx, nl, key, value)
	s.metrics.RecordStoreSuccess(nl.Len(), stored)
	if stored == 0 {
		return errors.Errorf("%w: 0 of %d peers", ErrStoreQuorum, nl.Len())
	}

	logtrace.Debug(ctx, "Stored record to peers", logtrace.Fields{
		logtrace.FieldModule: "dht",
		logtrace.FieldKey:    string(key),
		"requested":          nl.Len(),
		"stored":             stored,
	})
	return nil
}

// Get returns the record under key from the local store or, failing that, from the network
func (s *DHT) Get(ctx context.Context, key []byte) (*domain.Record, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	start := time.Now()

	record, err := s.store.Retrieve(ctx, key)
	if err == nil {
		s.metrics.localHits.Add(1)
		record.Publisher = s.ht.self.String()
		logtrace.Debug(ctx, "DHT Get local hit", logtrace.Fields{logtrace.FieldKey: string(key), "ms": time.Since(start).Milliseconds()})
		return record, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		logtrace.Error(ctx, "Error retrieving key from local storage", logtrace.Fields{
			logtrace.FieldModule: "dht",
			logtrace.FieldKey:    string(key),
			logtrace.FieldError:  err.Error(),
		})
	}

	_, value, from := s.iterate(ctx, FindValue, utils.Blake3Hash(key), key)
	if err := ctx.Err(); err != nil && value == nil {
		return nil, errors.Errorf("retrieve from peers: %w", err)
	}
	if value == nil {
		s.metrics.misses.Add(1)
		return nil, errors.Errorf("%w: %s", domain.ErrNotFound, key)
	}

	s.metrics.networkHits.Add(1)
	logtrace.Debug(ctx, "DHT Get network hit", logtrace.Fields{
		logtrace.FieldModule: "dht",
		logtrace.FieldKey:    string(key),
		logtrace.FieldPeer:   from.String(),
		"ms":                 time.Since(start).Milliseconds(),
	})
	now := time.Now().UTC()
	return &domain.Record{Key: key, Value: value, Publisher: from.String(), CreatedAt: now, UpdatedAt: now}, nil
}

// Stats describes the local node
type Stats struct {
	Self       *Node                     `json:"self"`
	PeersCount int                       `json:"peers_count"`
	Peers      []*Node                   `json:"peers"`
	Database   domain.DatabaseStats      `json:"database"`
	Network    map[string]HandleCounters `json:"network"`
	BanList    []BanSnapshot             `json:"ban_list"`
	Metrics    DHTMetricsSnapshot        `json:"metrics"`

	RecentStores    []RecentStoreEntry    `json:"recent_stores,omitempty"`
	RecentRetrieves []RecentRetrieveEntry `json:"recent_retrieves,omitempty"`
}

// Stats returns stats of DHT
func (s *DHT) Stats(ctx context.Context) (*Stats, error) {
	dbStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	peers := s.ht.nodes()
	stores, _ := s.network.RecentStoreSnapshot()
	retrieves, _ := s.network.RecentRetrieveSnapshot()
	return &Stats{
		Self:       s.ht.self,
		PeersCount: len(peers),
		Peers:      peers,
		Database:   dbStats,
		Network:    s.network.HandleMetricsSnapshot(),
		BanList:    s.ignorelist.Snapshot(),
		Metrics:    s.metrics.Snapshot(),

		RecentStores:    stores,
		RecentRetrieves: retrieves,
	}, nil
}

// newMessage creates a new message
func (s *DHT) newMessage(ctx context.Context, messageType int, receiver *Node, data interface{}) *Message {
	sender := &Node{
		ID:      s.ht.self.ID,
		IP:      s.ht.self.IP,
		Port:    s.ht.self.Port,
		Version: localVersion(),
	}
	msg := &Message{
		Sender:      sender,
		Receiver:    receiver,
		MessageType: messageType,
		Data:        data,
	}
	if id := logtrace.CorrelationID(ctx); id != "unknown" {
		msg.CorrelationID = id
	}
	return msg
}

func (s *DHT) newResponse(request *Message, receiver *Node, data interface{}) *Message {
	msg := s.newMessage(context.Background(), request.MessageType, receiver, data)
	msg.CorrelationID = request.CorrelationID
	return msg
}

type callResult struct {
	node     *Node
	response *Message
	err      error
}

// doMultiWorkers sends the lookup request to up to Alpha uncontacted nodes (all of them when searchRest is set)
func (s *DHT) doMultiWorkers(ctx context.Context, messageType int, target, key []byte, nl *NodeList, contacted map[string]bool, searchRest bool) <-chan callResult {
	results := make(chan callResult, Alpha)

	var receivers []*Node
	for _, node := range nl.Nodes {
		if len(receivers) >= Alpha && !searchRest {
			break
		}
		if contacted[string(node.ID)] {
			continue
		}
		contacted[string(node.ID)] = true
		receivers = append(receivers, node)
	}

	go func() {
		var wg sync.WaitGroup
		for _, receiver := range receivers {
			wg.Add(1)
			go func(receiver *Node) {
				defer wg.Done()

				var data interface{}
				switch messageType {
				case FindValue:
					data = &FindValueRequest{Key: key}
				default:
					data = &FindNodeRequest{Target: target}
				}

				response, err := s.network.Call(ctx, s.newMessage(ctx, messageType, receiver, data))
				results <- callResult{node: receiver, response: response, err: err}
			}(receiver)
		}
		wg.Wait()
		close(results)
	}()

	return results
}

// iterate runs an iterative FindNode or FindValue lookup for target. It returns the closest
// reachable nodes found and, for FindValue, the value and the node that held it.
func (s *DHT) iterate(ctx context.Context, messageType int, target, key []byte) (*NodeList, []byte, *Node) {
	nl := s.ht.closestContacts(K, target, s.ignorelist.ToNodeList())
	if nl.Len() == 0 {
		return nl, nil, nil
	}

	if messageType == FindNode {
		s.ht.resetRefreshTime(s.ht.bucketIndex(s.ht.self.ID, target))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultIterateLimit)
	defer cancel()

	contacted := make(map[string]bool)
	closestNode := nl.Nodes[0]
	// According to the Kademlia white paper, after a round of FIND_NODE RPCs
	// fails to provide a node closer than closestNode, we should send a
	// FIND_NODE RPC to all remaining nodes in the node list that have not
	// yet been contacted.
	searchRest := false

	for i := 0; i < maxIterations; i++ {
		if ctx.Err() != nil {
			break
		}

		for result := range s.doMultiWorkers(ctx, messageType, target, key, nl, contacted, searchRest) {
			if result.err != nil {
				logtrace.Debug(ctx, "Iterate worker RPC failed", logtrace.Fields{
					logtrace.FieldModule: "p2p",
					logtrace.FieldPeer:   result.node.String(),
					logtrace.FieldError:  result.err.Error(),
				})
				s.handleCallFailure(ctx, result.node)
				nl.DelNode(result.node)
				continue
			}
			s.ignorelist.Delete(result.node)
			s.addNode(ctx, result.response.Sender)

			switch v := result.response.Data.(type) {
			case *FindNodeResponse:
				if v.Status.Result == ResultOk {
					nl.AddNodes(s.filterCandidates(v.Closest))
				}
			case *FindValueResponse:
				if v.Status.Result != ResultOk {
					continue
				}
				if len(v.Value) > 0 {
					return nl, v.Value, result.response.Sender
				}
				nl.AddNodes(s.filterCandidates(v.Closest))
			}
		}

		if nl.Len() == 0 {
			break
		}
		nl.Comparator = target
		nl.Sort()

		if bytes.Equal(nl.Nodes[0].ID, closestNode.ID) {
			if searchRest {
				break
			}
			searchRest = true
			continue
		}
		closestNode = nl.Nodes[0]
	}

	// only keep nodes that answered
	reachable := &NodeList{Comparator: target}
	for _, node := range nl.Nodes {
		if contacted[string(node.ID)] {
			reachable.Nodes = append(reachable.Nodes, node)
		}
	}
	reachable.TopN(K)
	return reachable, nil, nil
}

// filterCandidates drops the local node and entries that cannot be dialed
func (s *DHT) filterCandidates(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		if node == nil || len(node.ID) != utils.HashSize || bytes.Equal(node.ID, s.ht.self.ID) {
			continue
		}
		if ip := net.ParseIP(node.IP); ip == nil || ip.IsUnspecified() || node.Port == 0 {
			continue
		}
		if s.ignorelist.Banned(node) {
			continue
		}
		out = append(out, node)
	}
	return out
}

func (s *DHT) storeToNodes(ctx context.Context, nl *NodeList, key, value []byte) int {
	var stored atomic.Int32
	sem := semaphore.NewWeighted(maxConcurrentNetworkStoreCalls)
	var group errgroup.Group

	for _, node := range nl.Nodes {
		node := node
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)

			if err := s.sendStoreData(ctx, node, key, value); err != nil {
				logtrace.Warn(ctx, "Send store data failed", logtrace.Fields{
					logtrace.FieldModule: "p2p",
					logtrace.FieldPeer:   node.String(),
					logtrace.FieldError:  err.Error(),
				})
				return nil
			}
			stored.Add(1)
			return nil
		})
	}
	_ = group.Wait()
	return int(stored.Load())
}

func (s *DHT) sendStoreData(ctx context.Context, n *Node, key, value []byte) error {
	request := s.newMessage(ctx, StoreData, n, &StoreDataRequest{Key: key, Value: value})

	rspMsg, err := s.network.Call(ctx, request)
	if err != nil {
		s.handleCallFailure(ctx, n)
		return errors.Errorf("network call: %w", err)
	}

	response, ok := rspMsg.Data.(*StoreDataResponse)
	if !ok {
		return errors.New("invalid StoreDataResponse")
	}
	if response.Status.Result != ResultOk {
		return errors.Errorf("peer rejected store: %s", response.Status.ErrMsg)
	}
	return nil
}

// addNode inserts a peer into the routing table, evicting a banned least-recently-seen peer if the bucket is full
func (s *DHT) addNode(ctx context.Context, node *Node) {
	if node == nil || len(node.ID) != utils.HashSize || bytes.Equal(node.ID, s.ht.self.ID) {
		return
	}
	if ip := net.ParseIP(node.IP); ip == nil || ip.IsUnspecified() || node.Port == 0 {
		logtrace.Debug(ctx, "Rejecting node: invalid address", logtrace.Fields{
			logtrace.FieldModule: "p2p",
			logtrace.FieldPeer:   node.String(),
		})
		return
	}
	if required, mismatch := versionMismatch(node.Version); mismatch {
		logtrace.Debug(ctx, "Rejecting node: version mismatch", logtrace.Fields{
			logtrace.FieldModule: "p2p",
			logtrace.FieldPeer:   node.String(),
			"required":           required,
			"peer_version":       node.Version,
		})
		return
	}
	if s.ignorelist.Banned(node) {
		return
	}

	if s.ht.add(node) {
		s.trackPeer(node)
		return
	}

	lru := s.ht.leastRecentlySeen(node.ID)
	if lru != nil && s.ignorelist.Banned(lru) && s.ht.replace(lru, node) {
		s.untrackPeer(lru)
		s.trackPeer(node)
	}
}

func (s *DHT) handleCallFailure(ctx context.Context, node *Node) {
	if count := s.ignorelist.IncrementCount(node); count > threshold {
		if s.ht.remove(node.ID) {
			s.untrackPeer(node)
			logtrace.Info(ctx, "Removed unresponsive node", logtrace.Fields{
				logtrace.FieldModule: "p2p",
				logtrace.FieldPeer:   node.String(),
				"failures":           count,
			})
		}
	}
}

func (s *DHT) trackPeer(node *Node) {
	s.replicationMtx.Lock()
	defer s.replicationMtx.Unlock()
	if _, ok := s.lastReplicated[string(node.ID)]; !ok {
		s.lastReplicated[string(node.ID)] = time.Time{}
	}
}

func (s *DHT) untrackPeer(node *Node) {
	s.replicationMtx.Lock()
	defer s.replicationMtx.Unlock()
	delete(s.lastReplicated, string(node.ID))
}

// StoreSuccessPoint is one Put fan-out outcome
type StoreSuccessPoint struct {
	TimeUnix    int64   `json:"time_unix"`
	Requests    int     `json:"requests"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"success_rate"`
}

// DHTMetricsSnapshot is a copy of DHTMetrics
type DHTMetricsSnapshot struct {
	StoreSuccessRecent []StoreSuccessPoint `json:"store_success_recent"`
	LocalHits          int64               `json:"local_hits"`
	NetworkHits        int64               `json:"network_hits"`
	Misses             int64               `json:"misses"`
}

// DHTMetrics tracks Put fan-out success and Get hit sources
type DHTMetrics struct {
	mu                 sync.Mutex
	storeSuccessRecent []StoreSuccessPoint

	localHits   atomic.Int64
	networkHits atomic.Int64
	misses      atomic.Int64
}

// RecordStoreSuccess appends one Put fan-out outcome
func (m *DHTMetrics) RecordStoreSuccess(requests, successful int) {
	point := StoreSuccessPoint{
		TimeUnix:   time.Now().UTC().Unix(),
		Requests:   requests,
		Successful: successful,
	}
	if requests > 0 {
		point.SuccessRate = float64(successful) / float64(requests) * 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeSuccessRecent = append(m.storeSuccessRecent, point)
	if len(m.storeSuccessRecent) > storeSuccessRecentLimit {
		m.storeSuccessRecent = m.storeSuccessRecent[len(m.storeSuccessRecent)-storeSuccessRecentLimit:]
	}
}

// Snapshot returns a copy of the metrics
func (m *DHTMetrics) Snapshot() DHTMetricsSnapshot {
	m.mu.Lock()
	recent := append([]StoreSuccessPoint(nil), m.storeSuccessRecent...)
	m.mu.Unlock()

	return DHTMetricsSnapshot{
		StoreSuccessRecent: recent,
		LocalHits:          m.localHits.Load(),
		NetworkHits:        m.networkHits.Load(),
		Misses:             m.misses.Load(),
	}
}
