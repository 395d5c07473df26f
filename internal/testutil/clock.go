package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/chartsync/internal/clock"
)

// FakeClock is a manually advanced clock.Clock for tests.
//
// Callbacks scheduled with AfterFunc fire only inside Advance, synchronously
// on the caller's goroutine and in due-time order. A callback may schedule
// further timers; those fire within the same Advance if they fall due.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers map[int64]*fakeTimer
}

type fakeTimer struct {
	c  *FakeClock
	id int64
	at time.Time
	fn func()
}

var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start, timers: map[int64]*fakeTimer{}}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, id: c.seq, at: c.now.Add(d), fn: f}
	c.timers[t.id] = t
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		delete(c.timers, next.id)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

// nextDue returns the earliest timer due at or before target. Ties fire in
// scheduling order. Caller holds mu.
func (c *FakeClock) nextDue(target time.Time) *fakeTimer {
	due := make([]*fakeTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].at.Equal(due[j].at) {
			return due[i].at.Before(due[j].at)
		}
		return due[i].id < due[j].id
	})
	return due[0]
}

// Stop cancels the timer.
func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if _, ok := t.c.timers[t.id]; !ok {
		return false
	}
	delete(t.c.timers, t.id)
	return true
}
