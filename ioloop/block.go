// File: ioloop/block.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import (
	"time"

	"github.com/momentics/corowait/reactor"
	"github.com/momentics/corowait/task"
)

// CoSwitch blocks tk on fds until one of readiness, timeoutMs
// (-1 means no timeout), or an explicit Cancel resumes it. tk is the
// calling goroutine's own task; a nil tk means the caller is not running
// on behalf of any task and CoSwitch is a no-op, mirroring the source's
// "if (!tk) return" guard on a missing current_task().
//
// Unlike a stackful coroutine, a goroutine has no separate "context saved
// on another stack" handoff to wait for, so CoSwitch performs both
// co_switch's state preparation and scheduler_switch's registration on
// the calling goroutine, and only then parks it in Scheduler.Yield.
func (c *Core) CoSwitch(tk *task.Task, fds []task.FdStruct, timeoutMs int32) {
	if tk == nil {
		return
	}
	c.prepareBlock(tk, fds, timeoutMs)
	c.SchedulerSwitch(tk)
	c.scheduler.Yield(tk)
}

func (c *Core) prepareBlock(tk *task.Task, fds []task.FdStruct, timeoutMs int32) uint32 {
	id := tk.IoWait.NextIoBlockID()
	tk.SetState(task.IoBlock)
	tk.IoWait.ResetWaitSuccessful()
	tk.IoWait.BlockTimeoutMs = timeoutMs
	tk.IoWait.BlockTimer = nil
	tk.IoWait.WaitFds = fds

	for i := range tk.IoWait.WaitFds {
		fdst := &tk.IoWait.WaitFds[i]
		fdst.BackPtr = &task.EpollPtr{
			Task:      tk,
			IoBlockID: id,
			Fdst:      fdst,
		}
	}

	debugPrint("task(%s) CoSwitch id=%d, nfds=%d, timeout=%d", tk.DebugInfo(), id, len(fds), timeoutMs)
	return id
}

type registeredFd struct {
	fd   int32
	mask task.EventMask
}

// SchedulerSwitch installs tk's prepared wait_fds into the multiplexer
// pair and, on success, arms a timeout. The order below is load-bearing:
// the wait-set insertion must happen before any Add that could race a
// concurrent Wait, and the generation id must be snapshotted before any
// Add, since a successful registration can be observed and re-consumed
// (re-blocking the task) by another thread before this function returns.
func (c *Core) SchedulerSwitch(tk *task.Task) {
	multi := len(tk.IoWait.WaitFds) > 1
	if multi {
		tk.IoWait.BlockLock.Lock()
		defer tk.IoWait.BlockLock.Unlock()
	}

	id := tk.IoWait.IoBlockID()

	tk.IncrRef()
	defer c.decrRef(tk)

	c.waiting.Insert(tk)

	var rollback []registeredFd
	ok := false

regLoop:
	for i := range tk.IoWait.WaitFds {
		fdst := &tk.IoWait.WaitFds[i]
		inst := c.pair.Choose(fdst.EventMask)
		mask := fdst.EventMask | task.EventOneShot

		tk.IncrRef()
		switch c.pair.Add(inst, fdst.Fd, mask, fdst.BackPtr) {
		case reactor.AddOK:
			rollback = append(rollback, registeredFd{fdst.Fd, fdst.EventMask})
			ok = true
			debugPrint("task(%s) io_block fd=%d ev=%d", tk.DebugInfo(), fdst.Fd, fdst.EventMask)
		case reactor.AddAlreadyPresent:
			c.decrRef(tk)
			for _, r := range rollback {
				if c.pair.Del(c.pair.Choose(r.mask), r.fd) {
					c.decrRef(tk)
				}
			}
			ok = false
			break regLoop
		default:
			// Transient per-fd error: skip, matching poll's tolerant
			// contract. The remaining fds still proceed.
			c.decrRef(tk)
		}
	}

	debugPrint("task(%s) SchedulerSwitch id=%d, nfds=%d, timeout=%d, ok=%v",
		tk.DebugInfo(), id, len(tk.IoWait.WaitFds), tk.IoWait.BlockTimeoutMs, ok)

	if !ok {
		if c.waiting.Erase(tk) {
			c.scheduler.AddRunnable(tk)
		}
		return
	}

	if tk.IoWait.BlockTimeoutMs != -1 {
		tk.IncrRef()
		generation := id
		tk.IoWait.BlockTimer = c.timers.ExpireAt(time.Duration(tk.IoWait.BlockTimeoutMs)*time.Millisecond, func() {
			debugPrint("task(%s) syscall timeout", tk.DebugInfo())
			c.Cancel(tk, generation)
			c.decrRef(tk)
		})
	}
}

// Cancel is the single-winner resume election: whichever of a readiness
// event, a timer expiry, or an explicit cancellation call wins the
// wait-set erase tears down tk's remaining kernel registrations and
// re-queues it. It is idempotent and safe from any goroutine; a stale
// generation or a race already decided by another caller is a no-op.
func (c *Core) Cancel(tk *task.Task, generation uint32) {
	debugPrint("task(%s) Cancel id=%d, current=%d", tk.DebugInfo(), generation, tk.IoWait.IoBlockID())

	tk.IncrRef()
	defer c.decrRef(tk)

	if tk.IoWait.IoBlockID() != generation {
		return
	}
	if !c.waiting.Erase(tk) {
		return
	}

	multi := len(tk.IoWait.WaitFds) > 1
	if multi {
		tk.IoWait.BlockLock.Lock()
		defer tk.IoWait.BlockLock.Unlock()
	}

	for i := range tk.IoWait.WaitFds {
		fdst := &tk.IoWait.WaitFds[i]
		if c.pair.Del(c.pair.Choose(fdst.EventMask), fdst.Fd) {
			c.decrRef(tk)
		}
	}

	debugPrint("task(%s) io_block wakeup id=%d", tk.DebugInfo(), generation)
	c.scheduler.AddRunnable(tk)
}
