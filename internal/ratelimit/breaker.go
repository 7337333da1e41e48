package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BreakerState is the circuit breaker's closed enum.
type BreakerState int

const (
	// BreakerClosed means calls proceed normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen means the pool is paused for a cool-down.
	BreakerOpen
	// BreakerHalted means the error rate exceeded threshold twice in a
	// row; the pool must stop until an operator intervenes.
	BreakerHalted
)

// windowSeconds is the width of the rolling error-rate window.
const windowSeconds = 60

// bucketCounts holds one second's worth of outcome counts.
type bucketCounts struct {
	successes int
	failures  int
	second    int64 // unix second this bucket belongs to; 0 means empty
}

// CircuitBreaker tracks a rolling 1-minute error rate and trips into a
// cool-down (BreakerOpen) then a latched halt (BreakerHalted) if the
// threshold is crossed twice in a row.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold float64
	cooldown  time.Duration
	now       func() time.Time

	buckets [windowSeconds]bucketCounts

	state      BreakerState
	openUntil  time.Time
	trippedAgo bool // whether the breaker has already opened once since construction or the last Reset

	metrics *breakerMetrics
}

// BreakerOptions configures a CircuitBreaker.
type BreakerOptions struct {
	// Threshold is the rolling error rate (0..1) that trips the
	// breaker. Default 0.05 (5%).
	Threshold float64
	// Cooldown is how long BreakerOpen lasts before the breaker
	// re-evaluates. Default 1 minute.
	Cooldown time.Duration
	// Now overrides time.Now for deterministic tests.
	Now func() time.Time
	// Registerer receives the breaker's Prometheus metrics.
	Registerer prometheus.Registerer
}

// NewCircuitBreaker constructs a CircuitBreaker.
func NewCircuitBreaker(opts BreakerOptions) *CircuitBreaker {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.05
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
		metrics:   newBreakerMetrics(opts.Registerer),
	}
}

// RecordSuccess records a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bucketLocked(b.now().Unix()).successes++
	b.evaluateLocked()
}

// RecordFailure records a failed call.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bucketLocked(b.now().Unix()).failures++
	b.evaluateLocked()
}

// State returns the current breaker state, re-evaluating a cool-down
// expiry first.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireCooldownLocked()
	return b.state
}

// Reset clears a halted breaker back to closed. This is the
// administrative recovery path for a terminal halt — the worker pool
// never calls this automatically.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.trippedAgo = false
	b.metrics.state.Set(0)
}

func (b *CircuitBreaker) bucketLocked(second int64) *bucketCounts {
	idx := second % windowSeconds
	bucket := &b.buckets[idx]
	if bucket.second != second {
		*bucket = bucketCounts{second: second}
	}
	return bucket
}

func (b *CircuitBreaker) errorRateLocked() float64 {
	now := b.now().Unix()
	var successes, failures int
	for i := range b.buckets {
		bucket := &b.buckets[i]
		if bucket.second == 0 || now-bucket.second >= windowSeconds {
			continue
		}
		successes += bucket.successes
		failures += bucket.failures
	}
	total := successes + failures
	if total == 0 {
		return 0
	}
	return float64(failures) / float64(total)
}

func (b *CircuitBreaker) expireCooldownLocked() {
	if b.state == BreakerOpen && b.now().After(b.openUntil) {
		b.state = BreakerClosed
	}
}

func (b *CircuitBreaker) evaluateLocked() {
	b.expireCooldownLocked()
	if b.state != BreakerClosed {
		return
	}

	rate := b.errorRateLocked()
	if rate <= b.threshold {
		return
	}

	if b.trippedAgo {
		b.state = BreakerHalted
		b.metrics.state.Set(2)
		b.metrics.trips.Inc()
		return
	}

	b.trippedAgo = true
	b.state = BreakerOpen
	b.openUntil = b.now().Add(b.cooldown)
	b.metrics.state.Set(1)
	b.metrics.trips.Inc()
}
