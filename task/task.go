// File: task/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Task is the scheduler-visible half of a stackful coroutine: an identity,
// a reference count, a state tag, and the IoWaitData block the io-wait core
// mutates across a single blocking call. Context-switch and run-queue
// placement are owned by package sched; Task only carries the state those
// collaborators read and write.

package task

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the coarse scheduling state of a Task with respect to the io-wait
// subsystem.
type State int32

const (
	// Running means the task currently holds a worker thread.
	Running State = iota
	// IoBlock means the task is suspended waiting on fd readiness, a timer,
	// or an explicit cancellation.
	IoBlock
	// Runnable means the task has been resumed and is queued to run again.
	Runnable
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case IoBlock:
		return "io_block"
	case Runnable:
		return "runnable"
	default:
		return "unknown"
	}
}

// EventMask encodes fd interest bits. Readable and writable are independent
// bits so a single fd may wait on both; OneShot is always ORed in by the
// multiplexer pair before EPOLL_CTL_ADD and is never set by callers.
type EventMask uint32

const (
	EventReadable EventMask = 1 << iota
	EventWritable
	EventOneShot
)

// FdStruct is one entry in a block's interest list. ResultEvents is filled
// in by the wait loop when the fd becomes ready; BackPtr is the
// cookie installed in the kernel registration and is only valid for the
// duration of the block that created it.
type FdStruct struct {
	Fd            int32
	EventMask     EventMask
	ResultEvents  EventMask
	BackPtr       *EpollPtr
}

// EpollPtr is the back-pointer threaded through a kernel event cookie. The
// FdStruct it describes points at it through BackPtr, and one is allocated
// per FdStruct each time a block is prepared. IoBlockID pins the generation this pointer
// belongs to: a dereference that finds a stale generation must treat the
// event as a no-op.
type EpollPtr struct {
	Task         *Task
	IoBlockID    uint32
	Fdst         *FdStruct
	ResultEvents EventMask
}

// IoWaitData is the per-task state a single blocking call reads and writes.
// It is embedded by value in Task so a block needs no separate allocation
// for it; the per-fd storage is the FdStruct slice and its EpollPtrs.
type IoWaitData struct {
	ioBlockID      atomic.Uint32
	waitSuccessful atomic.Uint32

	// WaitFds is only touched by the goroutine that owns the current block
	// (co_switch's caller) until SchedulerSwitch publishes it, and from then
	// on only under BlockLock when len(WaitFds) > 1. It is never resized
	// concurrently with a readiness/timeout/cancel race.
	WaitFds []FdStruct

	BlockTimeoutMs int32
	BlockTimer     TimerHandle

	// BlockLock serialises multi-fd teardown between a readiness wakeup and
	// a timer cancel. It is only acquired when len(WaitFds) > 1; a single-fd
	// block has nothing to race against itself.
	BlockLock Mutex
}

// TimerHandle is the opaque handle returned by a timer manager's ExpireAt.
// It is declared here, rather than imported from package timer, so task has
// no dependency on the timer implementation; timer.Handle satisfies it.
type TimerHandle interface {
	Cancel() bool
}

// Mutex is the minimal subset of sync.Mutex the block-teardown protocol
// needs. Declared as an interface so tests can substitute an instrumented
// lock to assert the single-winner / paired-lock invariants.
type Mutex interface {
	Lock()
	Unlock()
}

// IoBlockID returns the generation of the current or most recent block.
func (d *IoWaitData) IoBlockID() uint32 { return d.ioBlockID.Load() }

// NextIoBlockID increments and returns the new generation, invalidating any
// readiness/timer event still in flight from a prior block.
func (d *IoWaitData) NextIoBlockID() uint32 { return d.ioBlockID.Add(1) }

// WaitSuccessful returns the count of readiness events observed during the
// current block.
func (d *IoWaitData) WaitSuccessful() uint32 { return d.waitSuccessful.Load() }

// ResetWaitSuccessful zeroes the counter at the start of a new block.
func (d *IoWaitData) ResetWaitSuccessful() { d.waitSuccessful.Store(0) }

// IncrWaitSuccessful is called by the wait loop once per readiness event
// it decodes, before the owning task is handed to Cancel.
func (d *IoWaitData) IncrWaitSuccessful() { d.waitSuccessful.Add(1) }

// Task is the opaque identity external callers (poll/select adapters,
// fd-syscall hooks) hold. Only the fields the io-wait core needs are
// exported; everything else a full scheduler would carry (stack, registers,
// deletion-list linkage) is out of scope here.
type Task struct {
	ID    uint64
	Label string

	refs  atomic.Int32
	state atomic.Int32

	IoWait IoWaitData
}

// New creates a Task with an initial reference count of 1, matching the
// scheduler's ownership of the slot it allocates it into.
func New(id uint64, label string) *Task {
	tk := &Task{ID: id, Label: label}
	tk.refs.Store(1)
	tk.state.Store(int32(Running))
	tk.IoWait.BlockLock = &sync.Mutex{}
	return tk
}

// Reset reinitializes a possibly-recycled Task as id/label, restoring
// the invariants New establishes. Intended for a pool that hands back
// Task values retired by a Scheduler once their io-wait reference count
// reaches zero.
func (t *Task) Reset(id uint64, label string) {
	t.ID = id
	t.Label = label
	t.refs.Store(1)
	t.state.Store(int32(Running))
	t.IoWait.ioBlockID.Store(0)
	t.IoWait.waitSuccessful.Store(0)
	t.IoWait.WaitFds = nil
	t.IoWait.BlockTimeoutMs = 0
	t.IoWait.BlockTimer = nil
	if t.IoWait.BlockLock == nil {
		t.IoWait.BlockLock = &sync.Mutex{}
	}
}

// State returns the current scheduling state.
func (t *Task) State() State { return State(t.state.Load()) }

// SetState sets the scheduling state. Called by the io-wait core and its
// scheduler collaborator only; callers outside this module should not
// mutate it directly.
func (t *Task) SetState(s State) { t.state.Store(int32(s)) }

// IncrRef increments the reference count. Every successful kernel
// registration, every armed timer, and the scope of SchedulerSwitch/Cancel
// itself each hold one count.
func (t *Task) IncrRef() { t.refs.Add(1) }

// DecrRef decrements the reference count and reports whether it reached
// zero. The caller that observes zero is responsible for handing the task
// to a deferred-delete list; this package never frees a Task itself.
func (t *Task) DecrRef() (reachedZero bool) {
	return t.refs.Add(-1) == 0
}

// RefCount returns the current reference count, for tests and diagnostics.
func (t *Task) RefCount() int32 { return t.refs.Load() }

// DebugInfo renders a short identity string, mirroring the %s used in the
// original implementation's trace lines.
func (t *Task) DebugInfo() string {
	return fmt.Sprintf("%s#%d", t.Label, t.ID)
}
