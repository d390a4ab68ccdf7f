package testutil

import (
	"sync"
	"time"
)

// ReferenceDate is the "today" every deterministic test runs on.
var ReferenceDate = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

// FixedClock is a settable wall clock for tests.
//
// Horizon-based classifiers take "now" as a parameter; FixedClock lets a
// test (or a harness scenario) pin it and step it forward by whole days.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock at t. A zero t means ReferenceDate.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = ReferenceDate
	}
	return &FixedClock{now: t}
}

// Now returns the current fixed time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AdvanceDays moves the clock forward by n days (backwards for negative n).
func (c *FixedClock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, n)
}

// DaysFromNow returns a pointer to the date n days after ReferenceDate.
func DaysFromNow(n int) *time.Time {
	d := ReferenceDate.AddDate(0, 0, n)
	return &d
}
