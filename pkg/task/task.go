// Package task keeps an in-memory record of requests in flight, grouped by
// service. Entries live only while the handler that started them is running.
package task

import (
	"sort"
	"sync"
	"time"
)

// Tracker records live tasks per service. Implementations are safe for
// concurrent use; empty service or id arguments are ignored.
type Tracker interface {
	Start(service, taskID string)
	End(service, taskID string)
	Snapshot() map[string][]string
}

// InMemoryTracker is the process-local Tracker
type InMemoryTracker struct {
	mu   sync.RWMutex
	data map[string]map[string]time.Time // service -> task id -> start time
}

// New returns an empty tracker
func New() *InMemoryTracker {
	return &InMemoryTracker{data: make(map[string]map[string]time.Time)}
}

func (t *InMemoryTracker) insert(service, taskID string, unique bool) bool {
	if service == "" || taskID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks, ok := t.data[service]
	if !ok {
		tasks = make(map[string]time.Time)
		t.data[service] = tasks
	}
	if _, exists := tasks[taskID]; exists {
		return !unique
	}
	tasks[taskID] = time.Now()
	return true
}

// TryStart marks a task as running and reports false if it already was
func (t *InMemoryTracker) TryStart(service, taskID string) bool {
	return t.insert(service, taskID, true)
}

// Start marks a task as running. Starting a running task keeps its original start time.
func (t *InMemoryTracker) Start(service, taskID string) {
	t.insert(service, taskID, false)
}

// End removes a task; unknown tasks are ignored
func (t *InMemoryTracker) End(service, taskID string) {
	if service == "" || taskID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tasks, ok := t.data[service]; ok {
		delete(tasks, taskID)
		if len(tasks) == 0 {
			delete(t.data, service)
		}
	}
}

// Snapshot returns a copy of the running task ids per service, oldest first
func (t *InMemoryTracker) Snapshot() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]string, len(t.data))
	for service, tasks := range t.data {
		ids := make([]string, 0, len(tasks))
		for id := range tasks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			ti, tj := tasks[ids[i]], tasks[ids[j]]
			if ti.Equal(tj) {
				return ids[i] < ids[j]
			}
			return ti.Before(tj)
		})
		out[service] = ids
	}
	return out
}

// Count returns the number of running tasks across all services
func (t *InMemoryTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var n int
	for _, tasks := range t.data {
		n += len(tasks)
	}
	return n
}
