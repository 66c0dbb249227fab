// Package dispatch turns synchronous API calls into queued store operations.
// A single Dispatcher goroutine owns the store handle; results are fanned out
// to waiting callers through a Broadcaster.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/LumeraProtocol/entrynode/p2p"
	"github.com/LumeraProtocol/entrynode/pkg/entry"
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/keys"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
	"github.com/LumeraProtocol/entrynode/pkg/signature"
)

const (
	logPrefix = "dispatch"

	// DefaultQueueSize is the request queue capacity used when none is configured
	DefaultQueueSize = 32
	// DefaultStoreTimeout bounds each store round trip when none is configured
	DefaultStoreTimeout = 20 * time.Second

	// MsgInvalidSignature is the fixed error text of every rejected write
	MsgInvalidSignature = "Invalid signature"
)

var (
	// ErrQueueFull is returned by Submit in fail-fast mode when the queue is full
	ErrQueueFull = errors.New("request queue is full")
	// ErrDispatcherStopped is returned by Submit once Run has returned
	ErrDispatcherStopped = errors.New("dispatcher stopped")
	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("dispatcher already running")
)

// Store is the distributed store the dispatcher reads from and writes to
type Store interface {
	Put(ctx context.Context, key []byte, value []byte) error
	Get(ctx context.Context, key []byte) (*p2p.Record, error)
}

// VerifyFunc checks that sig signs entryName under publicKey
type VerifyFunc func(publicKey, entryName, sig string) error

// Config controls queueing and store deadlines
type Config struct {
	QueueSize    int
	StoreTimeout time.Duration
	// FailFast rejects Submit with ErrQueueFull instead of blocking
	FailFast bool
}

// Stats is a point-in-time view of the dispatcher counters
type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	Processed       uint64 `json:"processed"`
	Rejected        uint64 `json:"rejected"`
	Unauthenticated uint64 `json:"unauthenticated"`
	Failed          uint64 `json:"failed"`
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithVerifier replaces the signature check
func WithVerifier(verify VerifyFunc) Option {
	return func(d *Dispatcher) {
		if verify != nil {
			d.verify = verify
		}
	}
}

// Dispatcher processes requests one at a time in submission order
type Dispatcher struct {
	store       Store
	broadcaster *Broadcaster
	verify      VerifyFunc
	config      Config

	queue   chan Request
	started atomic.Bool
	done    chan struct{}

	processed       atomic.Uint64
	rejected        atomic.Uint64
	unauthenticated atomic.Uint64
	failed          atomic.Uint64
}

// New returns a dispatcher that publishes every result on broadcaster
func New(store Store, broadcaster *Broadcaster, config Config, opts ...Option) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	d := &Dispatcher{
		store:       store,
		broadcaster: broadcaster,
		verify:      signature.Verify,
		config:      config,
		queue:       make(chan Request, config.QueueSize),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues req. It blocks while the queue is full unless the dispatcher
// is in fail-fast mode, in which case it returns ErrQueueFull. A request accepted
// while Run is stopping is still answered with Unavailable.
func (d *Dispatcher) Submit(ctx context.Context, req Request) error {
	if isNilRequest(req) {
		return errors.New("nil request")
	}
	select {
	case <-d.done:
		return ErrDispatcherStopped
	default:
	}

	if d.config.FailFast {
		select {
		case d.queue <- req:
			return d.enqueued()
		case <-d.done:
			return ErrDispatcherStopped
		default:
			d.rejected.Add(1)
			return ErrQueueFull
		}
	}

	select {
	case d.queue <- req:
		return d.enqueued()
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueued answers requests that reached the queue after Run drained it
func (d *Dispatcher) enqueued() error {
	select {
	case <-d.done:
		d.drain()
	default:
	}
	return nil
}

func isNilRequest(req Request) bool {
	switch r := req.(type) {
	case nil:
		return true
	case *GetRequest:
		return r == nil
	case *PutRequest:
		return r == nil
	}
	return false
}

// Run consumes the queue until ctx is done. Requests still queued at shutdown
// are answered with Unavailable.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	logtrace.Info(ctx, "dispatcher started", logtrace.Fields{
		logtrace.FieldModule: logPrefix,
		"queue_size":         d.config.QueueSize,
		"fail_fast":          d.config.FailFast,
	})

	for {
		select {
		case <-ctx.Done():
			close(d.done)
			d.drain()
			logtrace.Info(ctx, "dispatcher stopped", logtrace.Fields{logtrace.FieldModule: logPrefix})
			return nil
		case req := <-d.queue:
			d.broadcaster.Publish(d.process(ctx, req))
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case req := <-d.queue:
			d.broadcaster.Publish(stoppedResult(req))
		default:
			return
		}
	}
}

// QueueDepth returns the number of requests waiting
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Stats returns the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth:      len(d.queue),
		QueueCapacity:   cap(d.queue),
		Processed:       d.processed.Load(),
		Rejected:        d.rejected.Load(),
		Unauthenticated: d.unauthenticated.Load(),
		Failed:          d.failed.Load(),
	}
}

func (d *Dispatcher) process(ctx context.Context, req Request) Response {
	defer d.processed.Add(1)
	ctx = logtrace.CtxWithCorrelationID(ctx, req.RequestID())

	switch r := req.(type) {
	case *GetRequest:
		return d.get(ctx, r)
	case *PutRequest:
		return d.put(ctx, r)
	default:
		// unreachable: Request is sealed
		return nil
	}
}

func (d *Dispatcher) get(ctx context.Context, req *GetRequest) *GetResult {
	key := keys.DeriveReadKey(req.Location)
	fields := logtrace.Fields{
		logtrace.FieldModule:   logPrefix,
		logtrace.FieldMethod:   "Get",
		logtrace.FieldLocation: req.Location,
	}

	storeCtx, cancel := context.WithTimeout(ctx, d.config.StoreTimeout)
	defer cancel()

	record, err := d.store.Get(storeCtx, key.Bytes())
	if err != nil {
		code := codes.Unavailable
		if errors.Is(err, p2p.ErrNotFound) {
			code = codes.NotFound
		} else {
			d.failed.Add(1)
		}
		fields[logtrace.FieldError] = err.Error()
		logtrace.Debug(ctx, "store get failed", fields)
		return &GetResult{ID: req.ID, Code: code, Error: err.Error()}
	}

	e, err := entry.Unmarshal(record.Value)
	if err != nil {
		d.failed.Add(1)
		fields[logtrace.FieldError] = err.Error()
		logtrace.Warn(ctx, "stored value is not an entry", fields)
		return &GetResult{ID: req.ID, Code: codes.DataLoss, Error: err.Error()}
	}

	logtrace.Debug(ctx, "entry read", logtrace.WithFields(fields, logtrace.Fields{logtrace.FieldEntryName: e.Name}))
	return &GetResult{ID: req.ID, Entry: &e}
}

func (d *Dispatcher) put(ctx context.Context, req *PutRequest) *PutResult {
	key := keys.DeriveWriteKey(req.Signature)
	fields := logtrace.Fields{
		logtrace.FieldModule:    logPrefix,
		logtrace.FieldMethod:    "Put",
		logtrace.FieldEntryName: req.Entry.Name,
	}

	if err := d.verify(req.PublicKey, req.Entry.Name, req.Signature); err != nil {
		d.unauthenticated.Add(1)
		fields[logtrace.FieldError] = err.Error()
		logtrace.Warn(ctx, "signature rejected", fields)
		return &PutResult{ID: req.ID, Key: key, Code: codes.Unauthenticated, Error: MsgInvalidSignature}
	}

	value, err := entry.Marshal(req.Entry)
	if err != nil {
		code := codes.Internal
		if errors.Is(err, entry.ErrMissingName) {
			code = codes.InvalidArgument
		}
		fields[logtrace.FieldError] = err.Error()
		logtrace.Warn(ctx, "encode entry failed", fields)
		return &PutResult{ID: req.ID, Key: key, Code: code, Error: err.Error()}
	}

	storeCtx, cancel := context.WithTimeout(ctx, d.config.StoreTimeout)
	defer cancel()

	if err := d.store.Put(storeCtx, key.Bytes(), value); err != nil {
		d.failed.Add(1)
		fields[logtrace.FieldError] = err.Error()
		logtrace.Error(ctx, "store put failed", fields)
		return &PutResult{ID: req.ID, Key: key, Code: codes.Unavailable, Error: err.Error()}
	}

	logtrace.Debug(ctx, "entry written", logtrace.WithFields(fields, logtrace.Fields{logtrace.FieldKey: key.String()}))
	return &PutResult{ID: req.ID, Key: key}
}

func stoppedResult(req Request) Response {
	switch r := req.(type) {
	case *GetRequest:
		return &GetResult{ID: r.ID, Code: codes.Unavailable, Error: ErrDispatcherStopped.Error()}
	case *PutRequest:
		return &PutResult{ID: r.ID, Key: keys.DeriveWriteKey(r.Signature), Code: codes.Unavailable, Error: ErrDispatcherStopped.Error()}
	default:
		return nil
	}
}
