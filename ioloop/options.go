// File: ioloop/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioloop

// Options configures a Core's idle and batching behaviour.
type Options struct {
	// MaxSleepMs caps the blocking quantum DelayEventWaitTime ratchets
	// towards under adaptive idle throttling.
	MaxSleepMs int32
	// EpollEventSize bounds how many readiness events a single Wait call
	// may decode per instance per pass.
	EpollEventSize int
}

// DefaultOptions mirrors the source's defaults: a 1024-entry event buffer
// and no cap need be reached quickly, so a conservative 20ms ceiling.
func DefaultOptions() Options {
	return Options{
		MaxSleepMs:     20,
		EpollEventSize: 1024,
	}
}
