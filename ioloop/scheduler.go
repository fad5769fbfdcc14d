// File: ioloop/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import "github.com/momentics/corowait/task"

// Scheduler is the set of operations Core needs from whatever owns task
// lifecycle and goroutine parking. A Go goroutine blocked on a channel
// receive is already fully suspended, so unlike a stackful coroutine
// scheduler there is no separate "current task" registry to consult:
// every Core entry point takes the task it concerns as an explicit
// argument, supplied by the goroutine that already holds it.
type Scheduler interface {
	// Yield suspends the calling goroutine until AddRunnable(tk) is
	// called for it. Core calls this only after SchedulerSwitch has
	// finished installing tk's kernel and timer registrations, so by the
	// time Yield blocks, tk is already a valid resume target for any
	// other thread.
	Yield(tk *task.Task)

	// AddRunnable re-queues tk for execution. Called by Core exactly
	// once per completed block, by whichever actor won the wait-set
	// race.
	AddRunnable(tk *task.Task)

	// Retire is called once per task whose io-wait reference count has
	// reached zero, but only while WaitLoop holds its process-wide lock
	// — mirroring the source's rule that task destruction may only
	// happen while the multiplexer pair is quiescent, since a kernel
	// event already in flight may still carry a cookie pointing at it.
	// A scheduler that pools Task values should treat this as the signal
	// that tk is safe to recycle.
	Retire(tk *task.Task)
}
