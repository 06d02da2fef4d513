package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a StepClock.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic clock for tests. Each call to Now advances
// by a fixed step.
//
// Unlike engine.SystemClock, StepClock can be reset for test reuse.
// This enables the same scenario to run multiple times with identical
// timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewStepClock creates a clock starting at Epoch with a one-second step.
//
// The first call to Now() returns Epoch.
func NewStepClock() *StepClock {
	return NewStepClockAt(Epoch, time.Second)
}

// NewStepClockAt creates a clock with an explicit start and step.
func NewStepClockAt(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start.UTC(), step: step}
}

// Now returns the current time and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Peek returns the time the next call to Now will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock to its start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
