// File: reactor/pair_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build linux

package reactor

import (
	"log"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/corowait/task"
)

// LinuxPair is the epoll-backed Pair. Kernel instances are created lazily,
// on first use per Instance, and re-created if the owning pid changes —
// a fork leaves the child holding dup'd fds pointed at the parent's epoll
// set, which is never what the child wants, so those inherited fds are
// closed first. A failed epoll_create1 terminates the process with a
// diagnostic on stderr.
type LinuxPair struct {
	mu       sync.Mutex
	fds      [2]int
	created  [2]bool
	ownerPid int
	buf      [2][]unix.EpollEvent
}

// NewLinuxPair constructs a Pair with no kernel instances created yet.
func NewLinuxPair() *LinuxPair {
	return &LinuxPair{ownerPid: -1}
}

func (p *LinuxPair) Choose(mask task.EventMask) Instance {
	if mask&task.EventWritable != 0 && mask&task.EventReadable == 0 {
		return Write
	}
	return Read
}

func (p *LinuxPair) getEpoll(inst Instance) (int, error) {
	pid := os.Getpid()
	p.mu.Lock()
	defer p.mu.Unlock()
	if pid != p.ownerPid {
		for i := range p.created {
			if p.created[i] {
				unix.Close(p.fds[i])
				p.created[i] = false
			}
		}
		p.ownerPid = pid
	}
	if !p.created[inst] {
		fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
		if err != nil {
			log.Fatalf("reactor: epoll_create1 failed: %v", err)
		}
		p.fds[inst] = fd
		p.created[inst] = true
	}
	return p.fds[inst], nil
}

// cookiePtr reads or writes the 8-byte epoll_data union that Fd and Pad
// together represent. The union starts at &ev.Fd, not &ev.Pad — Pad alone
// is only the high half on little-endian and writing a full pointer there
// overruns the struct.
func cookiePtr(ev *unix.EpollEvent) *unsafe.Pointer {
	return (*unsafe.Pointer)(unsafe.Pointer(&ev.Fd))
}

func (p *LinuxPair) Add(inst Instance, fd int32, mask task.EventMask, cookie *task.EpollPtr) AddResult {
	epfd, err := p.getEpoll(inst)
	if err != nil {
		return AddError
	}

	var kmask uint32
	if mask&task.EventReadable != 0 {
		kmask |= unix.EPOLLIN
	}
	if mask&task.EventWritable != 0 {
		kmask |= unix.EPOLLOUT
	}
	kmask |= unix.EPOLLONESHOT

	var ev unix.EpollEvent
	ev.Events = kmask
	*cookiePtr(&ev) = unsafe.Pointer(cookie)

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		if err == unix.EEXIST {
			return AddAlreadyPresent
		}
		return AddError
	}
	return AddOK
}

func (p *LinuxPair) Del(inst Instance, fd int32) bool {
	epfd, err := p.getEpoll(inst)
	if err != nil {
		return false
	}
	// Pass a non-nil event for compatibility with pre-2.6.9 kernels that
	// dereference it even on EPOLL_CTL_DEL.
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, int(fd), &unix.EpollEvent{}) == nil
}

func decodeEvents(kmask uint32) task.EventMask {
	var m task.EventMask
	if kmask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		m |= task.EventReadable
	}
	if kmask&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		m |= task.EventWritable
	}
	return m
}

// Wait must not be called concurrently for the same Instance; the io-wait
// core's process-wide try-lock around the wait loop already guarantees
// that, so Pair does not duplicate the serialization here.
func (p *LinuxPair) Wait(inst Instance, out []ReadyEvent, timeoutMs int) (int, error) {
	epfd, err := p.getEpoll(inst)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	if len(p.buf[inst]) < len(out) {
		p.buf[inst] = make([]unix.EpollEvent, len(out))
	}
	raw := p.buf[inst][:len(out)]

	n, err := unix.EpollWait(epfd, raw, timeoutMs)
	for err == unix.EINTR {
		n, err = unix.EpollWait(epfd, raw, timeoutMs)
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for i := 0; i < n; i++ {
		cookie := (*task.EpollPtr)(*cookiePtr(&raw[i]))
		if cookie == nil {
			continue
		}
		out[count] = ReadyEvent{Cookie: cookie, Events: decodeEvents(raw[i].Events)}
		count++
	}
	return count, nil
}

func (p *LinuxPair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for i := 0; i < 2; i++ {
		if p.created[i] {
			if err := unix.Close(p.fds[i]); err != nil && firstErr == nil {
				firstErr = err
			}
			p.created[i] = false
		}
	}
	return firstErr
}
