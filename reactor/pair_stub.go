// File: reactor/pair_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package reactor

import (
	"errors"

	"github.com/momentics/corowait/task"
)

// ErrUnsupported is returned by StubPair.Wait; StubPair.Add reports
// AddError and StubPair.Del reports false. The io-wait core is
// epoll-specific by design; this stub lets package reactor build on
// non-Linux platforms for tooling and cross-compilation checks. Package
// control defines RegisterPlatformProbes only for Linux and Windows, so
// package ioloop builds on Windows but not on other non-Linux platforms.
var ErrUnsupported = errors.New("reactor: epoll readiness multiplexing is only supported on linux")

// StubPair is the non-Linux Pair. It creates nothing and fails every call.
type StubPair struct{}

// NewLinuxPair name is kept so callers can stay build-tag-free; on a
// non-Linux GOOS it returns the stub instead of a working pair.
func NewLinuxPair() *StubPair { return &StubPair{} }

func (p *StubPair) Choose(mask task.EventMask) Instance {
	if mask&task.EventWritable != 0 && mask&task.EventReadable == 0 {
		return Write
	}
	return Read
}

func (p *StubPair) Add(Instance, int32, task.EventMask, *task.EpollPtr) AddResult { return AddError }
func (p *StubPair) Del(Instance, int32) bool                                     { return false }
func (p *StubPair) Wait(Instance, []ReadyEvent, int) (int, error)                 { return 0, ErrUnsupported }
func (p *StubPair) Close() error                                                 { return nil }
