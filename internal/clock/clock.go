// Package clock abstracts wall time so timer-driven components can be
// driven deterministically in tests.
package clock

import "time"

// Timer is a pending callback created by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Clock provides the current time and one-shot callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
