// File: sched/pump.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pump drives an ioloop.Core's WaitLoop on a dedicated goroutine with
// the adaptive batching/backoff rhythm the core's own
// DelayEventWaitTime/ResetEventWaitTime knobs are designed for an
// external caller to supply.

package sched

import (
	"sync/atomic"
	"time"

	"github.com/momentics/corowait/control"
	"github.com/momentics/corowait/ioloop"
)

// Pump repeatedly calls Core.WaitLoop, backing off with a capped
// doubling delay when a pass finds nothing to do and resetting the
// moment activity resumes.
type Pump struct {
	core   *ioloop.Core
	kick   chan struct{}
	quitCh chan struct{}
	doneCh chan struct{}

	running    atomic.Bool
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewPump builds a Pump around core. Backoff starts at 1ms and doubles
// up to 20ms while idle; both bounds are fixed at construction.
func NewPump(core *ioloop.Core) *Pump {
	return &Pump{
		core:       core,
		kick:       make(chan struct{}, 1),
		quitCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		minBackoff: time.Millisecond,
		maxBackoff: 20 * time.Millisecond,
	}
}

// BindConfig wires cfg's "max_sleep_ms" key to the Core's adaptive
// quantum ceiling: every config reload re-reads the value and pushes it
// via Core.SetMaxSleepMs, so an operator can retune idle latency
// without restarting the pump. The same re-apply function is also
// registered as a process-wide hot-reload hook, so a SIGHUP-style
// control.TriggerHotReload call elsewhere in the process picks up the
// same value even without a fresh ConfigStore.SetConfig call.
func (p *Pump) BindConfig(cfg *control.ConfigStore) {
	apply := func() {
		snap := cfg.GetSnapshot()
		v, ok := snap["max_sleep_ms"]
		if !ok {
			return
		}
		ms, ok := v.(int32)
		if !ok {
			return
		}
		p.core.SetMaxSleepMs(ms)
	}
	apply()
	cfg.OnReload(apply)
	control.RegisterReloadHook(apply)
}

// Kick interrupts an idle backoff so the next pass runs immediately,
// for a caller that just made a task runnable and doesn't want it to
// wait out an already-ratcheted-up quantum.
func (p *Pump) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run drives WaitLoop until Stop is called. Must not be invoked
// concurrently with itself on the same Pump.
func (p *Pump) Run() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		close(p.doneCh)
		p.running.Store(false)
	}()

	backoff := p.minBackoff
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-p.quitCh:
			return
		default:
		}

		switch n := p.core.WaitLoop(true); {
		case n > 0:
			p.core.ResetEventWaitTime()
			backoff = p.minBackoff
			continue
		case n == 0:
			p.core.DelayEventWaitTime()
		default:
			// -1: another goroutine already holds the multiplexer lock.
		}

		timer.Reset(backoff)
		select {
		case <-p.quitCh:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-p.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			backoff = p.minBackoff
		case <-timer.C:
			backoff *= 2
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
		}
	}
}

// Stop signals Run to exit and blocks until it has.
func (p *Pump) Stop() {
	select {
	case <-p.quitCh:
	default:
		close(p.quitCh)
	}
	if p.running.Load() {
		<-p.doneCh
	}
}
