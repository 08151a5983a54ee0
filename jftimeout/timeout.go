// Package jftimeout implements the atomic resettable deadline primitive
// described in SPEC_FULL.md §5: a start instant, a budget, and a deadline
// that may be reset from any goroutine, polled at safe points rather than
// driving cancellation through a channel.
//
// Modeled as a small single-purpose helper in the spirit of the teacher's
// own readahead/readahead.go: no pack file implements exactly this
// primitive, so it is built directly on time and sync/atomic.
package jftimeout

import (
	"sync/atomic"
	"time"
)

// Timeout tracks a budget from a start instant, with a deadline that may be
// reset from any goroutine. Remaining is safe for concurrent use.
type Timeout struct {
	started  time.Time
	budget   time.Duration
	deadline atomic.Int64 // UnixNano; 0 means "use started+budget"
}

// New creates a Timeout starting now with the given budget. A zero budget
// never expires.
func New(budget time.Duration) *Timeout {
	return &Timeout{started: time.Now(), budget: budget}
}

// Reset pushes the deadline to now+budget, extending (or shortening) the
// time remaining from this point on.
func (t *Timeout) Reset() {
	t.deadline.Store(time.Now().Add(t.budget).UnixNano())
}

func (t *Timeout) effectiveDeadline() time.Time {
	if d := t.deadline.Load(); d != 0 {
		return time.Unix(0, d)
	}
	return t.started.Add(t.budget)
}

// Remaining returns the time left before the deadline, or zero if it has
// passed. With no budget configured (unlimited wait) it returns the maximum
// time.Duration.
func (t *Timeout) Remaining() time.Duration {
	if t.budget == 0 {
		return time.Duration(1<<63 - 1) // effectively unlimited
	}
	remaining := time.Until(t.effectiveDeadline())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the deadline has passed.
func (t *Timeout) Expired() bool {
	return t.budget != 0 && t.Remaining() == 0
}
