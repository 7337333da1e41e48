package indexadapter

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies an adapter failure so the worker pool knows
// whether to retry, pause the whole pool, or drive the file to failed.
type ErrorKind string

const (
	// KindTransient covers network timeouts, 5xx responses, and
	// transient lock contention. The caller may retry.
	KindTransient ErrorKind = "transient"
	// KindRateLimit covers a 429-style response. The caller should
	// respect RetryAfter and reduce its request rate.
	KindRateLimit ErrorKind = "rate_limit"
	// KindCreditExhausted covers a payment-required response. The
	// caller should checkpoint, pause the pool, and surface a
	// notification rather than retry.
	KindCreditExhausted ErrorKind = "credit_exhausted"
	// KindReject covers a permanent 4xx, schema validation failure, or
	// rejected content. The caller should drive the file to failed.
	KindReject ErrorKind = "reject"
	// KindIntegrityViolation covers a foreign-key or check failure
	// signaling data corruption. The caller should crash-fail the
	// worker rather than continue.
	KindIntegrityViolation ErrorKind = "integrity_violation"
)

// Error wraps an adapter failure with its classification and any
// service-advertised retry delay.
type Error struct {
	Kind       ErrorKind
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s)", e.Kind, e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or "" if err does not
// wrap an *Error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// RetryAfterOf returns the retry delay carried by err, or 0 if err does
// not wrap an *Error or carries none.
func RetryAfterOf(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}
