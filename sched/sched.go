// File: sched/sched.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package sched adapts a worker-pool Executor and a Task recycle pool
// into the collaborator contract ioloop.Core needs: Yield, AddRunnable,
// and Retire.

package sched

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/corowait/internal/concurrency"
	"github.com/momentics/corowait/task"
)

// Run is a task's body. It receives the Task it runs as so it can read
// wait_successful and per-fd result_events after a blocking call, and
// pass the same Task back into CoSwitch for its next one.
type Run func(tk *task.Task)

// Scheduler owns task identity allocation, goroutine parking across
// blocks, and recycling retired tasks. It satisfies ioloop.Scheduler.
type Scheduler struct {
	exec   *concurrency.Executor
	nextID atomic.Uint64
	pool   sync.Pool

	// resume holds one channel per currently-blocked task, created
	// lazily by whichever of Yield or AddRunnable reaches it first and
	// removed once the pair has been consumed. A task only ever has one
	// block in flight at a time, so one entry per task suffices.
	resume sync.Map // map[*task.Task]chan struct{}
}

// New builds a Scheduler whose spawned tasks run on exec's worker pool.
func New(exec *concurrency.Executor) *Scheduler {
	return &Scheduler{
		exec: exec,
		pool: sync.Pool{New: func() any { return &task.Task{} }},
	}
}

// NewTask allocates (or recycles) a Task with a fresh, process-unique id.
func (s *Scheduler) NewTask(label string) *task.Task {
	tk := s.pool.Get().(*task.Task)
	tk.Reset(s.nextID.Add(1), label)
	return tk
}

// Spawn creates a Task and submits fn to run on the worker pool. fn is
// expected to call some ioloop.Core's CoSwitch, passing tk, whenever it
// needs to block.
func (s *Scheduler) Spawn(label string, fn Run) (*task.Task, error) {
	tk := s.NewTask(label)
	if err := s.exec.Submit(func() { fn(tk) }); err != nil {
		s.pool.Put(tk)
		return nil, err
	}
	return tk, nil
}

func (s *Scheduler) resumeChan(tk *task.Task) chan struct{} {
	ch, _ := s.resume.LoadOrStore(tk, make(chan struct{}))
	return ch.(chan struct{})
}

// Yield implements ioloop.Scheduler: block the calling goroutine — the
// task's own stack, in stackful-coroutine terms — until AddRunnable(tk).
func (s *Scheduler) Yield(tk *task.Task) {
	ch := s.resumeChan(tk)
	<-ch
	s.resume.Delete(tk)
	tk.SetState(task.Running)
}

// AddRunnable implements ioloop.Scheduler. Unlike a stackful scheduler's
// separate run-queue, waking the goroutine already parked in Yield IS
// making the task runnable again — Go's own scheduler decides which
// thread it actually resumes on, so there is nothing further to enqueue.
func (s *Scheduler) AddRunnable(tk *task.Task) {
	tk.SetState(task.Runnable)
	ch := s.resumeChan(tk)
	select {
	case <-ch:
		// Already closed by a racing caller; nothing to do. This should
		// not happen given the wait-set's single-winner guarantee, but
		// AddRunnable must stay idempotent regardless.
	default:
		close(ch)
	}
}

// Retire implements ioloop.Scheduler: tk's io-wait reference count has
// reached zero and WaitLoop's caller holds the process-wide lock, so it
// is safe to return tk to the pool for reuse by a future NewTask.
func (s *Scheduler) Retire(tk *task.Task) {
	s.resume.Delete(tk)
	s.pool.Put(tk)
}

// NumWorkers reports the worker pool's current size.
func (s *Scheduler) NumWorkers() int {
	return s.exec.NumWorkers()
}

// Resize grows or shrinks the worker pool.
func (s *Scheduler) Resize(n int) {
	s.exec.Resize(n)
}

// Close shuts down the worker pool. Tasks still parked in Yield at this
// point never resume; callers should ensure all spawned work has
// completed first.
func (s *Scheduler) Close() {
	s.exec.Close()
}
