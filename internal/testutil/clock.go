package testutil

import (
	"sync"
	"time"
)

// FakeClock is an injectable wall clock for components that accept a
// `Now func() time.Time` option (the rate limiter's circuit breaker is
// the one such component). Tests advance it
// explicitly instead of sleeping, so a cooldown or window test runs in
// microseconds regardless of the duration it exercises.
//
// Thread-safety: all methods are safe for concurrent use via an
// internal mutex, since breaker state can be touched from multiple
// worker-pool goroutines in a test.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFakeClock returns a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

// Now returns the clock's current time. Pass this method value directly
// as a `Now func() time.Time` option.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Set pins the clock to t, regardless of its current value.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
