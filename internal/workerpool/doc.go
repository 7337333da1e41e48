// Package workerpool drives eligible files through the ingestion
// lifecycle: claiming batches from the store, polling or submitting to
// the index adapter, and handing the result to the transition manager.
//
// A single Pool runs a bounded number of concurrent workers (an
// errgroup.Group with SetLimit) over each claimed batch; there is no
// per-worker state beyond the batch loop itself, so workers are
// interchangeable and the pool has no memory across ticks besides what
// the store and the index adapter's idempotent operations already
// provide.
package workerpool
