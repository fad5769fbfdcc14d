// File: timer/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package timer implements the monotonic expiring queue the io-wait core
// drains in bounded batches. A Handle's callback only ever runs once,
// whichever of Fire (natural expiry) or Cancel (raced away by readiness
// or explicit cancellation) gets there first.

package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
)

// Handle is returned by Manager.ExpireAt and satisfies task.TimerHandle.
type Handle struct {
	deadline time.Time
	callback func()
	fired    atomic.Bool
	index    int
}

// Cancel prevents the callback from ever running, if it has not already.
// It reports whether this call was the one that won that race; a false
// return means the timer had already fired (or been canceled) by someone
// else, matching the generation-check no-op semantics the caller relies
// on — an unconditional cancel from a stale path is always safe to call.
func (h *Handle) Cancel() bool {
	return h.fired.CompareAndSwap(false, true)
}

// Fire runs the callback unless it has already been canceled or fired.
// Called by the wait loop once a handle has been drained from the
// detached list, outside any lock the Manager holds.
func (h *Handle) Fire() {
	if h.fired.CompareAndSwap(false, true) {
		h.callback()
	}
}

type timerHeap []*Handle

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	hdl := x.(*Handle)
	hdl.index = len(*h)
	*h = append(*h, hdl)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	hdl := old[n-1]
	old[n-1] = nil
	hdl.index = -1
	*h = old[:n-1]
	return hdl
}

// Manager is a monotonic expiring queue ordered by deadline. ExpireAt is
// safe to call from any goroutine; GetExpired is the only consumer-side
// operation and is expected to be called from the single wait-loop
// goroutine pumping a process at a time, though it is safe under
// concurrent callers too since it is fully mutex-guarded.
type Manager struct {
	mu   sync.Mutex
	heap timerHeap
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	m := &Manager{}
	heap.Init(&m.heap)
	return m
}

// ExpireAt schedules cb to run no earlier than d from now and returns a
// Handle the caller can Cancel before that.
func (m *Manager) ExpireAt(d time.Duration, cb func()) *Handle {
	h := &Handle{deadline: time.Now().Add(d), callback: cb}
	m.mu.Lock()
	heap.Push(&m.heap, h)
	m.mu.Unlock()
	return h
}

// GetExpired pops up to limit handles whose deadline has already passed
// and appends them to out, returning the extended slice. Canceled handles
// are popped the same as live ones; Fire is a no-op for them, so the
// detached list downstream does not need to distinguish the two.
func (m *Manager) GetExpired(out []*Handle, limit int) []*Handle {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for limit > 0 && m.heap.Len() > 0 && !m.heap[0].deadline.After(now) {
		out = append(out, heap.Pop(&m.heap).(*Handle))
		limit--
	}
	return out
}

// Len reports the number of handles still pending, for diagnostics.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heap.Len()
}

// DetachedList is the timeout list a drained batch of expired handles
// lands in before its callbacks run. Keeping it separate from Manager's
// heap, under its own lock, means a concurrent cancel racing a timer
// expiry always finds a stable place to reason about: once a handle is
// here it will Fire (or have already been Canceled), independent of
// whatever the Manager's heap is doing for other timers.
type DetachedList struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewDetachedList returns an empty DetachedList.
func NewDetachedList() *DetachedList {
	return &DetachedList{q: queue.New()}
}

// Merge appends a freshly-drained batch.
func (d *DetachedList) Merge(batch []*Handle) {
	if len(batch) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range batch {
		d.q.Add(h)
	}
}

// Drain removes and returns every handle currently queued. The swap
// happens entirely under the lock; callers run the returned handles'
// Fire methods outside of it.
func (d *DetachedList) Drain() []*Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]*Handle, 0, n)
	for d.q.Length() > 0 {
		out = append(out, d.q.Remove().(*Handle))
	}
	return out
}
