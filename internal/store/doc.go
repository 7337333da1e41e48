// Package store provides SQLite-backed durable storage for the ingestion
// pipeline's file lifecycle state, the search pipeline's passage cache, and
// the session event log.
//
// # Critical Patterns
//
// CP-1: Optimistic Concurrency Control
//   - Every state-changing write carries both the expected prior state and
//     the expected prior version in its WHERE clause.
//   - A rowcount of zero means some other writer already advanced the row;
//     the caller must treat this as a stale-transition rejection, never a
//     silent retry.
//
// CP-2: Monotonic Versioning
//   - version increases by exactly one on every committed state change.
//   - version is never decremented or skipped by a state change; the one
//     reset is MarkStaleAndSupersede, which restarts a path's row at 0
//     when its content changes.
//
// CP-3: Append-Only Event Log
//   - session_events rows are inserted, never updated or deleted.
//   - sessions.updated_at is advanced by a database trigger, not application code.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes.
//   - synchronous=NORMAL: balance durability/performance.
//   - busy_timeout=5000: wait for locks up to 5 seconds before SQLITE_BUSY.
//   - foreign_keys=ON: enforce referential integrity on session_events.
package store
