// File: waitset/waitset.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package waitset holds the tasks currently blocked on fd readiness or a
// timer. Its only contract that matters is Erase: whichever caller's
// Erase observes the entry wins the right to resume that task, and every
// other simultaneous caller must see it already gone.

package waitset

import (
	"sync"

	"github.com/momentics/corowait/task"
)

// Set is a concurrent set keyed by task identity. Multiset semantics are
// not needed — a task is never inserted twice without an intervening
// Erase, since scheduler_switch always goes through co_switch first.
type Set struct {
	m sync.Map // map[*task.Task]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{}
}

// Insert adds tk to the set. Must happen before any Add on the
// multiplexer pair that could race a readiness wakeup for tk.
func (s *Set) Insert(tk *task.Task) {
	s.m.Store(tk, struct{}{})
}

// Erase removes tk and reports whether this call was the one that found
// it present. sync.Map.LoadAndDelete is documented as atomic with respect
// to concurrent Store/Delete/LoadAndDelete on the same key, which is
// exactly the linearisable single-winner property the block/resume
// protocol depends on.
func (s *Set) Erase(tk *task.Task) bool {
	_, loaded := s.m.LoadAndDelete(tk)
	return loaded
}

// Contains reports whether tk is currently present, for tests and
// diagnostics; it is never used as the basis of a resume decision.
func (s *Set) Contains(tk *task.Task) bool {
	_, ok := s.m.Load(tk)
	return ok
}

// Len reports the number of tasks currently blocked, for diagnostics.
func (s *Set) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
