// File: ioloop/block_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/corowait/reactor"
	"github.com/momentics/corowait/task"
)

// blockDirect prepares and installs a block without going through
// Scheduler.Yield, for tests that only need to observe
// SchedulerSwitch/Cancel's bookkeeping.
func blockDirect(c *Core, tk *task.Task, fds []task.FdStruct, timeoutMs int32) {
	c.prepareBlock(tk, fds, timeoutMs)
	c.SchedulerSwitch(tk)
}

func TestSingleFdReadyImmediate(t *testing.T) {
	pair := newFakePair()
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	tk := task.New(1, "t")
	startRef := tk.RefCount()

	blockDirect(core, tk, []task.FdStruct{{Fd: 10, EventMask: task.EventReadable}}, -1)
	if !pair.registered(reactor.Read, 10) {
		t.Fatal("expected fd 10 registered on the read instance")
	}

	pair.fireReady(reactor.Read, 10, task.EventReadable)

	n := core.WaitLoop(false)
	if n != 1 {
		t.Fatalf("expected WaitLoop to report 1 event, got %d", n)
	}
	if tk.IoWait.WaitSuccessful() != 1 {
		t.Fatalf("expected wait_successful 1, got %d", tk.IoWait.WaitSuccessful())
	}
	if pair.registered(reactor.Read, 10) {
		t.Fatal("expected fd 10 deregistered after resume")
	}
	if sched.runnableCount() != 1 {
		t.Fatalf("expected the task added runnable exactly once, got %d", sched.runnableCount())
	}
	if tk.RefCount() != startRef {
		t.Fatalf("expected refcount back to %d, got %d", startRef, tk.RefCount())
	}
}

func TestSingleFdTimeout(t *testing.T) {
	pair := newFakePair()
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	tk := task.New(2, "t")
	startRef := tk.RefCount()

	blockDirect(core, tk, []task.FdStruct{{Fd: 10, EventMask: task.EventReadable}}, 50)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		core.WaitLoop(false)
		if sched.runnableCount() > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	if sched.runnableCount() != 1 {
		t.Fatalf("expected task resumed by timeout, runnable count = %d", sched.runnableCount())
	}
	if tk.IoWait.WaitSuccessful() != 0 {
		t.Fatalf("expected wait_successful 0 on timeout path, got %d", tk.IoWait.WaitSuccessful())
	}
	if pair.registered(reactor.Read, 10) {
		t.Fatal("expected fd 10 deregistered after timeout")
	}
	if tk.RefCount() != startRef {
		t.Fatalf("expected refcount back to %d, got %d", startRef, tk.RefCount())
	}
}

func TestMultiFdMixed(t *testing.T) {
	pair := newFakePair()
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	tk := task.New(3, "t")
	startRef := tk.RefCount()

	blockDirect(core, tk, []task.FdStruct{
		{Fd: 11, EventMask: task.EventReadable},
		{Fd: 12, EventMask: task.EventWritable},
	}, -1)

	pair.fireReady(reactor.Write, 12, task.EventWritable)
	pair.fireReady(reactor.Read, 11, task.EventReadable)

	n := core.WaitLoop(false)
	if n != 2 {
		t.Fatalf("expected 2 events processed, got %d", n)
	}
	if tk.IoWait.WaitSuccessful() != 2 {
		t.Fatalf("expected wait_successful 2, got %d", tk.IoWait.WaitSuccessful())
	}
	if pair.registered(reactor.Read, 11) || pair.registered(reactor.Write, 12) {
		t.Fatal("expected both fds deregistered")
	}
	if sched.runnableCount() != 1 {
		t.Fatalf("expected the task resumed exactly once despite two events, got %d", sched.runnableCount())
	}
	if tk.RefCount() != startRef {
		t.Fatalf("expected refcount back to %d, got %d", startRef, tk.RefCount())
	}
}

func TestDuplicateFdRollback(t *testing.T) {
	pair := newFakePair()
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	tk := task.New(4, "t")
	startRef := tk.RefCount()

	blockDirect(core, tk, []task.FdStruct{
		{Fd: 13, EventMask: task.EventReadable},
		{Fd: 13, EventMask: task.EventReadable},
	}, -1)

	if pair.registered(reactor.Read, 13) {
		t.Fatal("expected fd 13 rolled back after the duplicate add")
	}
	if sched.runnableCount() != 1 {
		t.Fatalf("expected the task resumed immediately runnable, got %d", sched.runnableCount())
	}
	if tk.IoWait.WaitSuccessful() != 0 {
		t.Fatalf("expected wait_successful 0, got %d", tk.IoWait.WaitSuccessful())
	}
	if tk.RefCount() != startRef {
		t.Fatalf("expected refcount back to %d, got %d", startRef, tk.RefCount())
	}
}

func TestStaleTimeoutIsNoOp(t *testing.T) {
	pair := newFakePair()
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	tk := task.New(5, "t")
	startRef := tk.RefCount()

	// Block A, with a 10ms timeout.
	blockDirect(core, tk, []task.FdStruct{{Fd: 14, EventMask: task.EventReadable}}, 10)
	genA := tk.IoWait.IoBlockID()

	// Readiness resumes A well before the timeout.
	core.Cancel(tk, genA)
	if sched.runnableCount() != 1 {
		t.Fatalf("expected A resumed by Cancel, runnable count = %d", sched.runnableCount())
	}

	// Task immediately re-blocks as B, no timeout, before A's timer fires.
	blockDirect(core, tk, []task.FdStruct{{Fd: 14, EventMask: task.EventReadable}}, -1)
	genB := tk.IoWait.IoBlockID()
	if genB == genA {
		t.Fatal("expected io_block_id to have advanced for B")
	}

	// Let A's timer fire and drain it.
	time.Sleep(15 * time.Millisecond)
	core.WaitLoop(false)

	if sched.runnableCount() != 1 {
		t.Fatalf("expected the stale A-timer to be a no-op; B should remain blocked, runnable count = %d", sched.runnableCount())
	}
	if pair.registered(reactor.Read, 14) != true {
		t.Fatal("expected B's registration on fd 14 to remain in place")
	}
	if got, want := tk.RefCount(), startRef+1; got != want {
		t.Fatalf("expected refcount %d (base + B's live registration), got %d", want, got)
	}
}

func TestContendedPumpOneBacksOff(t *testing.T) {
	pair := newFakePair()
	pair.waitDelay = 40 * time.Millisecond
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	results := make(chan int, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- core.WaitLoop(true)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		results <- core.WaitLoop(true)
	}()
	wg.Wait()
	close(results)

	sawBackoff := false
	for r := range results {
		if r == -1 {
			sawBackoff = true
		}
	}
	if !sawBackoff {
		t.Fatal("expected one contended WaitLoop call to return the -1 backoff sentinel")
	}
}

func TestCoSwitchNilTaskIsNoOp(t *testing.T) {
	pair := newFakePair()
	sched := newFakeScheduler()
	core := NewCore(pair, sched, DefaultOptions())

	// Must return immediately rather than panic or block.
	core.CoSwitch(nil, nil, -1)
}

func TestDelayAndResetEventWaitTime(t *testing.T) {
	core := NewCore(newFakePair(), newFakeScheduler(), Options{MaxSleepMs: 3, EpollEventSize: 16})
	for i := 0; i < 10; i++ {
		core.DelayEventWaitTime()
	}
	if got := core.epollWaitMs.Load(); got != 3 {
		t.Fatalf("expected quantum capped at 3, got %d", got)
	}
	core.ResetEventWaitTime()
	if got := core.epollWaitMs.Load(); got != 0 {
		t.Fatalf("expected quantum reset to 0, got %d", got)
	}
}
