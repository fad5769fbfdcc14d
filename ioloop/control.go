// File: ioloop/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Optional wiring into package control's metrics and debug-probe
// registries. Neither is required to drive a Core; AttachMetrics and
// AttachProbes are opt-in for callers that want WaitLoop activity
// observable alongside the rest of a process's control-plane state.

package ioloop

import "github.com/momentics/corowait/control"

// AttachMetrics records per-pass counters into mr on every WaitLoop call.
func (c *Core) AttachMetrics(mr *control.MetricsRegistry) {
	c.metrics = mr
}

// AttachProbes registers diagnostic probes into dp: the current loop
// index, the adaptive wait quantum, and the number of tasks currently
// blocked.
func (c *Core) AttachProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("ioloop.loop_index", func() any { return c.LoopIndex() })
	dp.RegisterProbe("ioloop.epoll_wait_ms", func() any { return c.epollWaitMs.Load() })
	dp.RegisterProbe("ioloop.blocked_tasks", func() any { return c.waiting.Len() })
	control.RegisterPlatformProbes(dp)
}

func (c *Core) recordMetrics(epollN, expiredCount int) {
	if c.metrics == nil {
		return
	}
	c.metrics.Set("ioloop.epoll_n", epollN)
	c.metrics.Set("ioloop.expired_timers", expiredCount)
	c.metrics.Set("ioloop.loop_index", c.LoopIndex())
}
