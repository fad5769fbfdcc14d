// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package reactor wraps the two one-shot epoll instances the io-wait core
// multiplexes readiness on: one carrying read interest, one carrying write
// interest. Splitting interest across two kernel objects lets a read-only
// wait skip the write instance entirely rather than filtering a mixed
// interest set on every wakeup.

package reactor

import "github.com/momentics/corowait/task"

// Instance names one half of a Pair.
type Instance int

const (
	// Read is the epoll instance registered for EventReadable interest.
	Read Instance = iota
	// Write is the epoll instance registered for EventWritable interest.
	Write
)

func (i Instance) String() string {
	if i == Write {
		return "write"
	}
	return "read"
}

// AddResult enumerates the outcomes SchedulerSwitch's registration loop
// needs to distinguish: a clean add, an fd already registered on this
// instance (the rollback case), or a syscall failure.
type AddResult int

const (
	AddOK AddResult = iota
	AddAlreadyPresent
	AddError
)

// ReadyEvent is one decoded readiness notification handed back by Wait.
type ReadyEvent struct {
	Cookie *task.EpollPtr
	Events task.EventMask
}

// Pair is the dual-instance, one-shot readiness multiplexer a wait loop
// drives. Implementations must be safe for concurrent Add/Del from any
// number of goroutines but Wait is expected to be called by at most one
// goroutine at a time per Instance, matching the process-wide epoll_lock
// try-lock around the wait loop.
type Pair interface {
	// Choose picks the instance a given interest mask should register on.
	// A mask with both EventReadable and EventWritable set resolves to
	// Read, and a single Add there arms both directions for that fd.
	Choose(mask task.EventMask) Instance

	// Add registers fd on inst for the given mask (OneShot is ORed in
	// automatically) with cookie as the kernel-delivered back-pointer.
	Add(inst Instance, fd int32, mask task.EventMask, cookie *task.EpollPtr) AddResult

	// Del deregisters fd from inst. Returns true if the kernel held a live
	// registration that was removed; false if fd was already gone (a
	// concurrent one-shot firing or a prior Del already reclaimed it).
	Del(inst Instance, fd int32) bool

	// Wait blocks up to timeoutMs (0 returns immediately, negative blocks
	// indefinitely) and writes ready events into out starting at index 0,
	// returning the number written. A nil cookie in the kernel event is skipped rather
	// than surfaced, since it indicates a registration torn down between
	// the kernel delivering the event and the caller decoding it.
	Wait(inst Instance, out []ReadyEvent, timeoutMs int) (int, error)

	// Close releases both underlying kernel instances.
	Close() error
}
