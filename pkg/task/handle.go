package task

import (
	"context"
	"sync"
	"time"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
	"github.com/LumeraProtocol/entrynode/pkg/logtrace"
)

// ErrAlreadyRunning is returned when a task id is already in flight for the service
var ErrAlreadyRunning = errors.New("task already running")

// Handle pairs a tracked task with its End call. A watchdog ends the task when
// the timeout passes so a stuck handler never stays listed as running.
type Handle struct {
	tr      Tracker
	service string
	id      string
	stop    chan struct{}
	once    sync.Once
}

// StartWith starts tracking id under service and returns its handle
func StartWith(ctx context.Context, tr Tracker, service, id string, timeout time.Duration) *Handle {
	if tr == nil || service == "" || id == "" {
		return &Handle{}
	}
	tr.Start(service, id)
	return newHandle(ctx, tr, service, id, timeout)
}

// StartUniqueWith is StartWith but fails with ErrAlreadyRunning when id is
// already tracked under service. Trackers without TryStart cannot enforce this.
func StartUniqueWith(ctx context.Context, tr Tracker, service, id string, timeout time.Duration) (*Handle, error) {
	if tr == nil || service == "" || id == "" {
		return &Handle{}, nil
	}
	if ts, ok := tr.(interface {
		TryStart(service, taskID string) bool
	}); ok {
		if !ts.TryStart(service, id) {
			return nil, ErrAlreadyRunning
		}
	} else {
		tr.Start(service, id)
	}
	return newHandle(ctx, tr, service, id, timeout), nil
}

func newHandle(ctx context.Context, tr Tracker, service, id string, timeout time.Duration) *Handle {
	logtrace.Debug(ctx, "task started", logtrace.Fields{logtrace.FieldModule: "task", "service": service, "task_id": id})

	h := &Handle{tr: tr, service: service, id: id, stop: make(chan struct{})}
	if timeout > 0 {
		go func() {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			select {
			case <-timer.C:
				h.end(ctx, true)
			case <-h.stop:
			}
		}()
	}
	return h
}

// End stops tracking the task. Safe to call more than once.
func (h *Handle) End(ctx context.Context) {
	h.end(ctx, false)
}

func (h *Handle) end(ctx context.Context, expired bool) {
	if h == nil || h.service == "" || h.id == "" {
		return
	}
	h.once.Do(func() {
		close(h.stop)
		h.tr.End(h.service, h.id)
		fields := logtrace.Fields{logtrace.FieldModule: "task", "service": h.service, "task_id": h.id}
		if expired {
			logtrace.Warn(ctx, "task watchdog expired", fields)
			return
		}
		logtrace.Debug(ctx, "task ended", fields)
	})
}
