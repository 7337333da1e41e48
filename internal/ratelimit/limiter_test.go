package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiterStartsAtFullFactor(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{})
	assert.Equal(t, 1.0, l.Factor())
}

func TestWaitPermitsWithinQuota(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 600, TokensPerMinute: 60000, RequestsPerDay: 100000}, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx, 100))
}

func TestReportRateLimitedReducesFactor(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{BackoffFactor: 0.5, MinFactor: 0.05})
	require.NoError(t, l.ReportRateLimited(context.Background(), 0))
	assert.InDelta(t, 0.5, l.Factor(), 1e-9)
}

func TestReportRateLimitedFloorsAtMinFactor(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{BackoffFactor: 0.1, MinFactor: 0.2})
	for i := 0; i < 5; i++ {
		require.NoError(t, l.ReportRateLimited(context.Background(), 0))
	}
	assert.InDelta(t, 0.2, l.Factor(), 1e-9)
}

func TestReportRateLimitedHonorsRetryAfter(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{})
	start := time.Now()
	require.NoError(t, l.ReportRateLimited(context.Background(), 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestReportRateLimitedRetryAfterRespectsContextCancel(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.ReportRateLimited(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportSuccessRecoversLinearlyTowardOne(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{BackoffFactor: 0.5, RecoveryStep: 0.1, MinFactor: 0.05})
	require.NoError(t, l.ReportRateLimited(context.Background(), 0))
	assert.InDelta(t, 0.5, l.Factor(), 1e-9)

	l.ReportSuccess()
	assert.InDelta(t, 0.6, l.Factor(), 1e-9)

	l.ReportSuccess()
	assert.InDelta(t, 0.7, l.Factor(), 1e-9)
}

func TestReportSuccessNeverExceedsOne(t *testing.T) {
	l := NewLimiter(Quota{RequestsPerMinute: 60, TokensPerMinute: 6000, RequestsPerDay: 1000}, Options{})
	l.ReportSuccess()
	assert.Equal(t, 1.0, l.Factor())
}
