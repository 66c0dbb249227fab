package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
)

// DefaultBroadcastBuffer is the per subscription buffer used when none is configured
const DefaultBroadcastBuffer = 32

// ErrSubscriptionClosed is returned by Await once the subscription is closed
var ErrSubscriptionClosed = errors.New("subscription closed")

// BroadcasterStats is a point-in-time view of the broadcaster
type BroadcasterStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Broadcaster fans every published Response out to all active subscriptions.
// A full subscription loses its oldest buffered response; Publish never blocks.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBroadcaster returns a broadcaster whose subscriptions buffer up to buffer responses
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBroadcastBuffer
	}
	return &Broadcaster{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe returns a subscription that receives every response published from now on.
// Subscribing to a closed broadcaster returns an already closed subscription.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{b: b, ch: make(chan Response, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers resp to every subscription
func (b *Broadcaster) Publish(resp Response) {
	if resp == nil {
		return
	}
	b.published.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.deliver(resp)
	}
}

// Close closes every subscription; later subscriptions are born closed
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.once.Do(func() { close(s.ch) })
	}
}

// Stats returns subscriber and drop counters
func (b *Broadcaster) Stats() BroadcasterStats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return BroadcasterStats{
		Subscribers: n,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}

func (b *Broadcaster) remove(s *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return false
	}
	delete(b.subs, s)
	return true
}

// Subscription is one receiver of broadcast responses
type Subscription struct {
	b  *Broadcaster
	ch chan Response

	sendMu sync.Mutex
	lagged atomic.Uint64
	once   sync.Once
}

// C returns the channel responses arrive on; it is closed by Close
func (s *Subscription) C() <-chan Response {
	return s.ch
}

// Lagged returns how many responses were dropped because the buffer was full
func (s *Subscription) Lagged() uint64 {
	return s.lagged.Load()
}

// Await returns the first response carrying id, discarding others
func (s *Subscription) Await(ctx context.Context, id string) (Response, error) {
	for {
		select {
		case resp, ok := <-s.ch:
			if !ok {
				return nil, ErrSubscriptionClosed
			}
			if resp.ResponseID() == id {
				return resp, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.remove(s)
	s.once.Do(func() { close(s.ch) })
}

// deliver is called with the broadcaster read lock held, so the channel is open
func (s *Subscription) deliver(resp Response) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for {
		select {
		case s.ch <- resp:
			return
		default:
		}
		select {
		case <-s.ch:
			s.lagged.Add(1)
			s.b.dropped.Add(1)
		default:
		}
	}
}
