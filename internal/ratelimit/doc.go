// Package ratelimit implements the token-bucket rate limiter and
// circuit breaker guarding calls to the index service.
//
// Three quotas — requests/minute, tokens/minute, requests/day — are
// enforced simultaneously; a call is gated on whichever is strictest at
// that moment. On a rate-limit response the limiter respects the
// advertised retry-after and multiplies its allowed rate down by a
// configurable factor; on repeated success it recovers linearly back to
// the configured quota.
//
// A CircuitBreaker tracks the rolling 1-minute error rate across calls
// gated by the same Limiter. Crossing the configured threshold pauses
// new work for a cool-down; crossing it again at any later point halts
// the pool until an operator intervenes. The first crossing does not
// age out: only Reset clears it, however long the breaker has stayed
// closed since.
package ratelimit
