// Package indexadapter defines the three-operation facade the worker
// pool and search pipeline use to reach the external index service:
// upload, poll, and query. It encapsulates authentication, retry on
// transient failures with jittered exponential backoff, and the
// classification that lets callers tell a transient hiccup from a
// permanent rejection from a billing pause.
//
// Two implementations are provided: HTTPAdapter, a real client over
// net/http, and MockAdapter, a deterministic in-memory stand-in driven
// by a fixed random seed for reproducible tests.
package indexadapter
