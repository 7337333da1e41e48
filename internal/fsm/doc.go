// Package fsm defines the closed state/event table governing a file's
// ingestion lifecycle and a minimal ephemeral state-machine type that
// enforces it.
//
// An fsm.Machine is a validator and phase coordinator, not a state
// owner: the durable store (internal/store) owns state. A Machine is
// constructed fresh from a state value read from the store at the
// start of a transition, used for exactly one Trigger call, and
// discarded. After any store failure, callers must re-read from the
// store rather than trust an in-memory Machine.
package fsm
