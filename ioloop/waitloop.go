// File: ioloop/waitloop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import "github.com/momentics/corowait/reactor"

// WaitLoop pumps the core once: draining expired timers into the detached
// list, then draining both multiplexer instances, resolving every winner
// through Cancel, running detached timeout callbacks, and retiring
// zero-refcount tasks. Every step after the timer drain runs while
// holding the process-wide epollLock, so the last step never races a
// kernel event still carrying a cookie into a task being destroyed.
//
// blockAllowed permits the read instance's Wait to block up to the
// adaptive quantum when there is otherwise no work; the write instance
// and any pass with pending timers never block, since blocking there
// would stall the other side for no benefit.
//
// Returns the number of timers plus readiness events processed, or -1 if
// another goroutine is already pumping (the caller should back off and
// retry, not busy-loop).
func (c *Core) WaitLoop(blockAllowed bool) int {
	expiredCount := 0
	for {
		batch := c.timers.GetExpired(nil, 128)
		if len(batch) == 0 {
			break
		}
		expiredCount += len(batch)
		c.timeouts.Merge(batch)
	}

	if !c.epollLock.TryLock() {
		if expiredCount > 0 {
			return expiredCount
		}
		return -1
	}
	defer c.epollLock.Unlock()

	c.loopIndex.Add(1)

	epollN := 0
	out := make([]reactor.ReadyEvent, c.opts.EpollEventSize)

	var resumers []func()

	instances := [...]reactor.Instance{reactor.Read, reactor.Write}
	for _, inst := range instances {
		timeoutMs := 0
		if blockAllowed && inst == reactor.Read && expiredCount == 0 {
			timeoutMs = int(c.epollWaitMs.Load())
		}

		n, err := c.pair.Wait(inst, out, timeoutMs)
		if err != nil {
			// Any wait error (including a surfaced EINTR) drains zero
			// events for this instance this pass; the next WaitLoop
			// call retries naturally.
			continue
		}
		epollN += n

		for i := 0; i < n; i++ {
			ev := out[i]
			cookie := ev.Cookie
			if cookie == nil || cookie.Task == nil {
				continue
			}
			cookie.ResultEvents = ev.Events
			if cookie.Fdst != nil {
				cookie.Fdst.ResultEvents = ev.Events
			}
			tk := cookie.Task
			tk.IoWait.IncrWaitSuccessful()

			gen := cookie.IoBlockID
			resumers = append(resumers, func() { c.Cancel(tk, gen) })
		}
	}

	// Delaying every Cancel call until after both instances have been
	// drained lets wait_successful reach its final value before any
	// caller observes the resumed task — mandatory for multi-fd blocks
	// to report the correct ready count.
	for _, resume := range resumers {
		resume()
	}

	for _, h := range c.timeouts.Drain() {
		h.Fire()
	}

	for _, tk := range c.drainRetireLocked() {
		c.scheduler.Retire(tk)
	}

	c.recordMetrics(epollN, expiredCount)
	return epollN + expiredCount
}

// LoopIndex reports how many WaitLoop passes have actually pumped the
// multiplexer (as opposed to backing off with -1), for diagnostics.
func (c *Core) LoopIndex() uint64 {
	return c.loopIndex.Load()
}
