// File: ioloop/fake_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

import (
	"sync"
	"time"

	"github.com/momentics/corowait/reactor"
	"github.com/momentics/corowait/task"
)

// fakePair is an in-memory reactor.Pair standing in for the kernel, so
// the block/resume protocol can be driven deterministically in tests.
type fakePair struct {
	mu        sync.Mutex
	regs      [2]map[int32]*task.EpollPtr
	failed    map[int32]bool
	ready     [2][]reactor.ReadyEvent
	waitDelay time.Duration
}

func newFakePair() *fakePair {
	return &fakePair{
		regs:   [2]map[int32]*task.EpollPtr{{}, {}},
		failed: map[int32]bool{},
	}
}

func (p *fakePair) Choose(mask task.EventMask) reactor.Instance {
	if mask&task.EventWritable != 0 && mask&task.EventReadable == 0 {
		return reactor.Write
	}
	return reactor.Read
}

func (p *fakePair) Add(inst reactor.Instance, fd int32, mask task.EventMask, cookie *task.EpollPtr) reactor.AddResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.regs[inst][fd]; exists {
		return reactor.AddAlreadyPresent
	}
	if p.failed[fd] {
		return reactor.AddError
	}
	p.regs[inst][fd] = cookie
	return reactor.AddOK
}

func (p *fakePair) Del(inst reactor.Instance, fd int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.regs[inst][fd]; exists {
		delete(p.regs[inst], fd)
		return true
	}
	return false
}

func (p *fakePair) Wait(inst reactor.Instance, out []reactor.ReadyEvent, timeoutMs int) (int, error) {
	if p.waitDelay > 0 {
		time.Sleep(p.waitDelay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.ready[inst])
	if n > len(out) {
		n = len(out)
	}
	copy(out, p.ready[inst][:n])
	p.ready[inst] = p.ready[inst][n:]
	return n, nil
}

func (p *fakePair) Close() error { return nil }

// fireReady simulates a kernel readiness notification for fd on inst.
func (p *fakePair) fireReady(inst reactor.Instance, fd int32, ev task.EventMask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cookie, ok := p.regs[inst][fd]
	if !ok {
		return
	}
	p.ready[inst] = append(p.ready[inst], reactor.ReadyEvent{Cookie: cookie, Events: ev})
}

func (p *fakePair) forceError(fd int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[fd] = true
}

func (p *fakePair) registered(inst reactor.Instance, fd int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.regs[inst][fd]
	return ok
}

// fakeScheduler is a minimal Scheduler: Yield parks the calling goroutine
// on a channel, AddRunnable wakes it, Retire just records the call.
type fakeScheduler struct {
	mu       sync.Mutex
	yielded  map[*task.Task]chan struct{}
	runnable []*task.Task
	retired  []*task.Task
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{yielded: make(map[*task.Task]chan struct{})}
}

func (s *fakeScheduler) waitChan(tk *task.Task) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.yielded[tk]
	if !ok {
		ch = make(chan struct{})
		s.yielded[tk] = ch
	}
	return ch
}

func (s *fakeScheduler) Yield(tk *task.Task) {
	<-s.waitChan(tk)
}

func (s *fakeScheduler) AddRunnable(tk *task.Task) {
	ch := s.waitChan(tk)
	s.mu.Lock()
	s.runnable = append(s.runnable, tk)
	delete(s.yielded, tk)
	s.mu.Unlock()
	close(ch)
}

func (s *fakeScheduler) Retire(tk *task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = append(s.retired, tk)
}

func (s *fakeScheduler) runnableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runnable)
}
