// File: ioloop/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package ioloop implements the block/resume protocol and wait loop of
// the io-wait core: CoSwitch and SchedulerSwitch suspend a task against
// a reactor.Pair and timer.Manager, Cancel resolves the single-winner
// resume race through waitset.Set, and WaitLoop pumps both once per
// call.
//
// current_task() resolution, present in the source this package is
// modeled on as an implicit per-thread lookup, is resolved here as an
// explicit parameter on every entry point instead: a goroutine blocked
// inside Scheduler.Yield is already fully suspended, so there is no
// hazard in the caller simply passing the *task.Task it already holds,
// and no need for goroutine-local storage.
package ioloop
