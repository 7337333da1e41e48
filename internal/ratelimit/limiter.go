package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Quota is the three simultaneously enforced limits guarding calls to
// the index service.
type Quota struct {
	RequestsPerMinute int
	TokensPerMinute   int
	RequestsPerDay    int
}

// Options configures adaptive behavior. Zero values fall back to the
// defaults in NewLimiter.
type Options struct {
	// BackoffFactor multiplies the allowed rate down on a rate-limit
	// response. Default 0.5 (halve the rate).
	BackoffFactor float64
	// RecoveryStep is added back to the rate factor on every reported
	// success, capped at 1.0. Default 0.05 (linear recovery).
	RecoveryStep float64
	// MinFactor is the floor the rate factor never drops below.
	// Default 0.05.
	MinFactor float64
	// Registerer receives the limiter's Prometheus metrics. If nil,
	// metrics are created but not registered with any registry.
	Registerer prometheus.Registerer
}

// Limiter enforces Quota via three independent token buckets, gating a
// call on whichever is currently strictest.
type Limiter struct {
	mu sync.Mutex

	baseRPM, baseTPM, baseRPD float64
	factor                    float64
	backoffFactor             float64
	recoveryStep              float64
	minFactor                 float64

	rpm *rate.Limiter
	tpm *rate.Limiter
	rpd *rate.Limiter

	metrics *metrics
}

// NewLimiter constructs a Limiter for quota.
func NewLimiter(quota Quota, opts Options) *Limiter {
	backoff := opts.BackoffFactor
	if backoff <= 0 {
		backoff = 0.5
	}
	recovery := opts.RecoveryStep
	if recovery <= 0 {
		recovery = 0.05
	}
	minFactor := opts.MinFactor
	if minFactor <= 0 {
		minFactor = 0.05
	}

	l := &Limiter{
		baseRPM:       float64(quota.RequestsPerMinute),
		baseTPM:       float64(quota.TokensPerMinute),
		baseRPD:       float64(quota.RequestsPerDay),
		factor:        1.0,
		backoffFactor: backoff,
		recoveryStep:  recovery,
		minFactor:     minFactor,
		rpm:           rate.NewLimiter(rate.Limit(float64(quota.RequestsPerMinute)/60), max1(quota.RequestsPerMinute)),
		tpm:           rate.NewLimiter(rate.Limit(float64(quota.TokensPerMinute)/60), max1(quota.TokensPerMinute)),
		rpd:           rate.NewLimiter(rate.Limit(float64(quota.RequestsPerDay)/86400), max1(quota.RequestsPerDay)),
		metrics:       newMetrics(opts.Registerer),
	}
	l.metrics.rateFactor.Set(1.0)
	return l
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Wait blocks until a single request consuming tokenCount tokens is
// permitted by all three quotas, or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, tokenCount int) error {
	if err := l.rpm.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit (requests/minute): %w", err)
	}
	if err := l.tpm.WaitN(ctx, max1(tokenCount)); err != nil {
		return fmt.Errorf("rate limit (tokens/minute): %w", err)
	}
	if err := l.rpd.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit (requests/day): %w", err)
	}
	l.metrics.requestsAllowed.Inc()
	return nil
}

// ReportRateLimited reduces the allowed rate by the configured backoff
// factor and, if the caller knows the external service's advertised
// retry-after, blocks until that deadline before returning — so the
// very next Wait call already reflects the reduced rate.
func (l *Limiter) ReportRateLimited(ctx context.Context, retryAfter time.Duration) error {
	l.mu.Lock()
	l.factor = math.Max(l.minFactor, l.factor*l.backoffFactor)
	l.applyFactorLocked()
	l.mu.Unlock()

	l.metrics.rateLimitEvents.Inc()

	if retryAfter <= 0 {
		return nil
	}
	select {
	case <-time.After(retryAfter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportSuccess recovers the allowed rate linearly toward the
// configured quota.
func (l *Limiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.factor >= 1.0 {
		return
	}
	l.factor = math.Min(1.0, l.factor+l.recoveryStep)
	l.applyFactorLocked()
}

// Factor returns the current rate multiplier, in (0, 1].
func (l *Limiter) Factor() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.factor
}

func (l *Limiter) applyFactorLocked() {
	l.rpm.SetLimit(rate.Limit(l.baseRPM / 60 * l.factor))
	l.tpm.SetLimit(rate.Limit(l.baseTPM / 60 * l.factor))
	l.rpd.SetLimit(rate.Limit(l.baseRPD / 86400 * l.factor))
	l.metrics.rateFactor.Set(l.factor)
}
