package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getResult(id string) Response {
	return &GetResult{ID: id}
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster(4)
	s1, s2 := b.Subscribe(), b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(getResult("a"))
	b.Publish(getResult("b"))

	for _, s := range []*Subscription{s1, s2} {
		assert.Equal(t, "a", (<-s.C()).ResponseID())
		assert.Equal(t, "b", (<-s.C()).ResponseID())
	}

	stats := b.Stats()
	assert.Equal(t, 2, stats.Subscribers)
	assert.Equal(t, uint64(2), stats.Published)
	assert.Zero(t, stats.Dropped)
}

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	b := NewBroadcaster(2)
	slow := b.Subscribe()
	defer slow.Close()

	for i := 1; i <= 5; i++ {
		b.Publish(getResult(fmt.Sprint(i)))
	}

	assert.Equal(t, "4", (<-slow.C()).ResponseID())
	assert.Equal(t, "5", (<-slow.C()).ResponseID())
	assert.Equal(t, uint64(3), slow.Lagged())
	assert.Equal(t, uint64(3), b.Stats().Dropped)
}

func TestSubscriptionMissesEarlierResponses(t *testing.T) {
	b := NewBroadcaster(2)
	b.Publish(getResult("before"))

	s := b.Subscribe()
	defer s.Close()
	b.Publish(getResult("after"))

	assert.Equal(t, "after", (<-s.C()).ResponseID())
}

func TestAwaitFiltersByID(t *testing.T) {
	b := NewBroadcaster(8)
	s := b.Subscribe()
	defer s.Close()

	b.Publish(getResult("other-1"))
	b.Publish(&PutResult{ID: "mine"})
	b.Publish(getResult("other-2"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := s.Await(ctx, "mine")
	require.NoError(t, err)
	_, ok := resp.(*PutResult)
	assert.True(t, ok)
}

func TestAwaitTimesOut(t *testing.T) {
	b := NewBroadcaster(1)
	s := b.Subscribe()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Await(ctx, "never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionCloseIdempotent(t *testing.T) {
	b := NewBroadcaster(1)
	s := b.Subscribe()
	s.Close()
	s.Close()

	assert.Equal(t, 0, b.Stats().Subscribers)
	b.Publish(getResult("x"))

	_, err := s.Await(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster(1)
	s := b.Subscribe()
	b.Close()

	_, ok := <-s.C()
	assert.False(t, ok)
	s.Close()

	late := b.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
	late.Close()
}

func TestPublishConcurrentWithSubscribe(t *testing.T) {
	b := NewBroadcaster(1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := b.Subscribe()
				s.Close()
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b.Publish(getResult(fmt.Sprintf("%d-%d", i, j)))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, b.Stats().Subscribers)
	assert.Equal(t, uint64(1600), b.Stats().Published)
}

func TestResultErr(t *testing.T) {
	assert.NoError(t, (&GetResult{ID: "ok"}).Err())
	assert.Error(t, (&GetResult{Error: "boom"}).Err())
	assert.Error(t, (&PutResult{Code: 16, Error: "Invalid signature"}).Err())
}
