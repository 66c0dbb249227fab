package kademlia

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"

	"github.com/LumeraProtocol/entrynode/p2p/kademlia/domain"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/utils"
)

const (
	defaultConnDeadline = 10 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// HandleCounters counts inbound requests of one message type
type HandleCounters struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

type handleCounters struct {
	total, success, failure atomic.Int64
}

// Network serves inbound DHT requests and sends outbound ones
type Network struct {
	dht      *DHT
	self     *Node
	listener net.Listener
	limiter  ratelimit.Limiter

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics sync.Map // message type name -> *handleCounters

	recentMu              sync.Mutex
	recentStoreOverall    []RecentStoreEntry
	recentStoreByIP       map[string][]RecentStoreEntry
	recentRetrieveOverall []RecentRetrieveEntry
	recentRetrieveByIP    map[string][]RecentRetrieveEntry
}

// NewNetwork returns a network service for the dht. rate caps inbound requests per second; 0 disables the cap.
func NewNetwork(dht *DHT, self *Node, rate int) *Network {
	limiter := ratelimit.NewUnlimited()
	if rate > 0 {
		limiter = ratelimit.New(rate)
	}
	return &Network{
		dht:     dht,
		self:    self,
		limiter: limiter,
		done:    make(chan struct{}),
	}
}

// Start listens on the configured address. A zero port binds an ephemeral one and updates self.
func (s *Network) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.dht.options.IP, strconv.Itoa(int(s.self.Port)))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.self.Port = uint16(tcpAddr.Port)
	}

	logtrace.Info(ctx, "DHT network listening", logtrace.Fields{
		logtrace.FieldModule:  "p2p",
		logtrace.FieldAddress: listener.Addr().String(),
		"node":                s.self.String(),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx)
	}()
	return nil
}

// Stop closes the listener and waits for in-flight handlers
func (s *Network) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logtrace.Debug(ctx, "close listener", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
			}
		}
	})
	s.wg.Wait()
}

func (s *Network) serve(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			logtrace.Error(ctx, "DHT accept failed", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Network) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(defaultConnDeadline))

	request, err := decode(conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logtrace.Debug(ctx, "DHT decode request failed", logtrace.Fields{
				logtrace.FieldModule: "p2p",
				logtrace.FieldError:  err.Error(),
				"remote":             conn.RemoteAddr().String(),
			})
		}
		return
	}

	s.limiter.Take()

	counters := s.counters(messageTypeName(request.MessageType))
	counters.total.Add(1)

	reqCtx := logtrace.CtxWithCorrelationID(ctx, request.CorrelationID)
	response, err := s.handleMessage(reqCtx, conn.RemoteAddr(), request)
	if err != nil {
		counters.failure.Add(1)
		logtrace.Debug(reqCtx, "DHT request rejected", logtrace.Fields{
			logtrace.FieldModule: "p2p",
			logtrace.FieldError:  err.Error(),
			"request":            request.String(),
		})
		return
	}

	frame, err := encode(response)
	if err != nil {
		counters.failure.Add(1)
		logtrace.Error(reqCtx, "DHT encode response failed", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
		return
	}
	if _, err := conn.Write(frame); err != nil {
		counters.failure.Add(1)
		logtrace.Debug(reqCtx, "DHT write response failed", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
		return
	}
	counters.success.Add(1)
}

func (s *Network) handleMessage(ctx context.Context, remote net.Addr, request *Message) (*Message, error) {
	if request.Sender == nil || len(request.Sender.ID) != utils.HashSize {
		return nil, errors.New("missing or malformed sender")
	}
	if required, mismatch := versionMismatch(request.Sender.Version); mismatch {
		return nil, errors.Errorf("peer version %q does not match required %q", request.Sender.Version, required)
	}

	sender := *request.Sender
	if ip := net.ParseIP(sender.IP); ip == nil || ip.IsUnspecified() {
		if host, _, err := net.SplitHostPort(remote.String()); err == nil {
			sender.IP = host
		}
	}
	s.dht.addNode(ctx, &sender)

	switch request.MessageType {
	case Ping:
		return s.dht.newResponse(request, &sender, &PingResponse{Status: ResponseStatus{Result: ResultOk}}), nil
	case StoreData:
		req, ok := request.Data.(*StoreDataRequest)
		if !ok {
			return nil, errors.Errorf("invalid StoreData payload %T", request.Data)
		}
		return s.dht.newResponse(request, &sender, s.handleStoreData(ctx, &sender, req)), nil
	case FindNode:
		req, ok := request.Data.(*FindNodeRequest)
		if !ok {
			return nil, errors.Errorf("invalid FindNode payload %T", request.Data)
		}
		closest := s.dht.ht.closestContacts(K, req.Target, []*Node{&sender})
		return s.dht.newResponse(request, &sender, &FindNodeResponse{
			Status:  ResponseStatus{Result: ResultOk},
			Closest: closest.Nodes,
		}), nil
	case FindValue:
		req, ok := request.Data.(*FindValueRequest)
		if !ok {
			return nil, errors.Errorf("invalid FindValue payload %T", request.Data)
		}
		return s.dht.newResponse(request, &sender, s.handleFindValue(ctx, &sender, req)), nil
	default:
		return nil, errors.Errorf("unknown message type %d", request.MessageType)
	}
}

func (s *Network) handleStoreData(ctx context.Context, sender *Node, req *StoreDataRequest) *StoreDataResponse {
	start := time.Now()
	var err error
	switch {
	case len(req.Key) == 0:
		err = errors.New("empty key")
	case len(req.Value) == 0:
		err = errors.New("empty value")
	default:
		err = s.dht.store.Store(ctx, req.Key, req.Value)
	}
	s.appendStoreEntry(newRecentStoreEntry(sender, req.Key, len(req.Value), start, err))

	if err != nil {
		logtrace.Warn(ctx, "DHT store request failed", logtrace.Fields{
			logtrace.FieldModule: "p2p",
			logtrace.FieldPeer:   sender.String(),
			logtrace.FieldError:  err.Error(),
		})
		return &StoreDataResponse{Status: ResponseStatus{Result: ResultFailed, ErrMsg: err.Error()}}
	}
	return &StoreDataResponse{Status: ResponseStatus{Result: ResultOk}}
}

func (s *Network) handleFindValue(ctx context.Context, sender *Node, req *FindValueRequest) *FindValueResponse {
	start := time.Now()
	entry := RecentRetrieveEntry{
		TimeUnix: start.UTC().Unix(),
		SenderID: sender.String(),
		SenderIP: sender.IP,
		Key:      string(req.Key),
	}
	defer func() {
		entry.DurationMS = time.Since(start).Milliseconds()
		s.appendRetrieveEntry(entry)
	}()

	record, err := s.dht.store.Retrieve(ctx, req.Key)
	if err == nil {
		entry.Found = true
		return &FindValueResponse{Status: ResponseStatus{Result: ResultOk}, Value: record.Value}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		entry.Error = err.Error()
		logtrace.Error(ctx, "DHT local retrieve failed", logtrace.Fields{logtrace.FieldModule: "p2p", logtrace.FieldError: err.Error()})
	}

	closest := s.dht.ht.closestContacts(K, utils.Blake3Hash(req.Key), []*Node{sender})
	return &FindValueResponse{Status: ResponseStatus{Result: ResultOk}, Closest: closest.Nodes}
}

// Call sends request to its receiver and waits for the response
func (s *Network) Call(ctx context.Context, request *Message) (*Message, error) {
	if request.Receiver == nil {
		return nil, errors.New("request has no receiver")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", request.Receiver.Address())
	if err != nil {
		return nil, errors.Errorf("dial %s: %w", request.Receiver.Address(), err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	frame, err := encode(request)
	if err != nil {
		return nil, errors.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, errors.Errorf("write request: %w", err)
	}

	response, err := decode(conn)
	if err != nil {
		return nil, errors.Errorf("read response: %w", err)
	}
	if response.Sender == nil {
		return nil, errors.New("response has no sender")
	}
	if ip := net.ParseIP(response.Sender.IP); ip == nil || ip.IsUnspecified() {
		response.Sender.IP = request.Receiver.IP
	}
	return response, nil
}

func (s *Network) counters(name string) *handleCounters {
	v, _ := s.metrics.LoadOrStore(name, &handleCounters{})
	return v.(*handleCounters)
}

// HandleMetricsSnapshot returns inbound request counters per message type
func (s *Network) HandleMetricsSnapshot() map[string]HandleCounters {
	out := make(map[string]HandleCounters)
	s.metrics.Range(func(key, value any) bool {
		c := value.(*handleCounters)
		out[key.(string)] = HandleCounters{
			Total:   c.total.Load(),
			Success: c.success.Load(),
			Failure: c.failure.Load(),
		}
		return true
	})
	return out
}
