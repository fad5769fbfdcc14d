// File: ioloop/core.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package ioloop is the io-wait core: it drives a reactor.Pair and a
// timer.Manager to suspend tasks on fd readiness or a deadline and
// resume exactly one winner per block, through waitset.Set's
// linearisable erase.

package ioloop

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/corowait/control"
	"github.com/momentics/corowait/reactor"
	"github.com/momentics/corowait/task"
	"github.com/momentics/corowait/timer"
	"github.com/momentics/corowait/waitset"
)

// Core is the process-wide io-wait core. A process normally holds one.
type Core struct {
	pair      reactor.Pair
	timers    *timer.Manager
	timeouts  *timer.DetachedList
	waiting   *waitset.Set
	scheduler Scheduler
	opts      Options

	// epollLock serialises WaitLoop across threads: at most one pumps
	// the multiplexer pair at a time, matching the process-wide
	// try-lock the source uses around epoll_wait.
	epollLock sync.Mutex
	loopIndex atomic.Uint64

	// epollWaitMs is the adaptive blocking quantum DelayEventWaitTime /
	// ResetEventWaitTime ratchet.
	epollWaitMs atomic.Int32

	// maxSleepMs mirrors Options.MaxSleepMs but lives in its own atomic
	// so SetMaxSleepMs can be driven by a live config reload without
	// racing DelayEventWaitTime's read.
	maxSleepMs atomic.Int32

	retireMu sync.Mutex
	retire   []*task.Task

	metrics *control.MetricsRegistry
}

// NewCore builds a Core around pair, which must already be a working
// multiplexer (reactor.NewLinuxPair on Linux).
func NewCore(pair reactor.Pair, sched Scheduler, opts Options) *Core {
	c := &Core{
		pair:      pair,
		timers:    timer.NewManager(),
		timeouts:  timer.NewDetachedList(),
		waiting:   waitset.New(),
		scheduler: sched,
		opts:      opts,
	}
	c.maxSleepMs.Store(opts.MaxSleepMs)
	return c
}

// SetMaxSleepMs adjusts the adaptive quantum's ceiling at runtime, e.g.
// from a control.ConfigStore reload hook. Takes effect on the next
// DelayEventWaitTime call.
func (c *Core) SetMaxSleepMs(ms int32) {
	c.maxSleepMs.Store(ms)
}

// DelayEventWaitTime ratchets the blocking quantum up by 1ms, capped at
// Options.MaxSleepMs. Intended to be driven by an external idle
// detector: call it when a pass finds nothing to do, ResetEventWaitTime
// when activity resumes.
func (c *Core) DelayEventWaitTime() {
	for {
		cur := c.epollWaitMs.Load()
		ceil := c.maxSleepMs.Load()
		next := cur + 1
		if next > ceil {
			next = ceil
		}
		if next == cur {
			return
		}
		if c.epollWaitMs.CompareAndSwap(cur, next) {
			return
		}
	}
}

// ResetEventWaitTime resets the blocking quantum to zero.
func (c *Core) ResetEventWaitTime() {
	c.epollWaitMs.Store(0)
}

// decrRef decrements tk's io-wait reference count and, if it reaches
// zero, buffers tk for Retire at the next WaitLoop pass rather than
// notifying the scheduler immediately — destruction must wait until the
// multiplexer pair is quiescent.
func (c *Core) decrRef(tk *task.Task) {
	if tk.DecrRef() {
		c.retireMu.Lock()
		c.retire = append(c.retire, tk)
		c.retireMu.Unlock()
	}
}

func (c *Core) drainRetireLocked() []*task.Task {
	c.retireMu.Lock()
	batch := c.retire
	c.retire = nil
	c.retireMu.Unlock()
	return batch
}
