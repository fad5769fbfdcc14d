// File: sched/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package sched wires a worker-pool Executor and a Task recycle pool
// into the ioloop.Scheduler contract: Spawn launches a task's body onto
// the pool, Yield/AddRunnable park and wake the goroutine running it
// across each blocking call, and Retire recycles it once ioloop's
// reference-count accounting says it is safe to.
package sched
