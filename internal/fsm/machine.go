package fsm

import (
	"context"
	"fmt"

	"github.com/roach88/corpusgraph/internal/store"
)

// Event is one of the five legal lifecycle events.
type Event string

const (
	EventStartUpload        Event = "start_upload"
	EventUploadComplete     Event = "upload_complete"
	EventProcessingComplete Event = "processing_complete"
	EventFailUpload         Event = "fail_upload"
	EventFailProcessing     Event = "fail_processing"
)

// transitions is the closed (state, event) -> state table governing the
// ingestion lifecycle. Any pair not present here is illegal.
var transitions = map[store.FileState]map[Event]store.FileState{
	store.StateUntracked: {
		EventStartUpload: store.StateUploading,
	},
	store.StateUploading: {
		EventUploadComplete: store.StateProcessing,
		EventFailUpload:     store.StateFailed,
	},
	store.StateProcessing: {
		EventProcessingComplete: store.StateIndexed,
		EventFailProcessing:     store.StateFailed,
	},
}

// EventNotAllowedError is raised when (state, event) is not in the
// transition table.
type EventNotAllowedError struct {
	State store.FileState
	Event Event
}

func (e *EventNotAllowedError) Error() string {
	return fmt.Sprintf("event %q not allowed from state %q", e.Event, e.State)
}

// NextState returns the state event would move the machine to from
// state, or an EventNotAllowedError if the pair is illegal. Exposed so
// callers (the worker pool's guard check) can ask "is this legal"
// without constructing a Machine.
func NextState(state store.FileState, event Event) (store.FileState, error) {
	byEvent, ok := transitions[state]
	if !ok {
		return "", &EventNotAllowedError{State: state, Event: event}
	}
	to, ok := byEvent[event]
	if !ok {
		return "", &EventNotAllowedError{State: state, Event: event}
	}
	return to, nil
}

// TransitionContext carries everything a guard or entry hook needs: the
// file identity, the version the caller has verified is current, and
// any event-specific payload.
type TransitionContext struct {
	FilePath        string
	ExpectedVersion int64
	Payload         any
}

// Guard is an async predicate that may read the store but must never
// mutate it.
type Guard func(ctx context.Context, tctx TransitionContext) (bool, error)

// EntryHook performs the side effect of entering a state, including the
// OCC-guarded database write. It must tolerate being invoked with a
// zero-value TransitionContext during initial-state activation, where
// it is a no-op.
type EntryHook func(ctx context.Context, from, to store.FileState, tctx TransitionContext) error

// Machine is an ephemeral, single-use state machine instance.
// Constructed from a state value read fresh from the store, used for
// exactly one Trigger call (preceded by exactly one Activate call), and
// discarded.
type Machine struct {
	current store.FileState
	guard   Guard
	entry   EntryHook
}

// New constructs a Machine starting at current. guard and entry may be
// nil; a nil guard always passes, a nil entry is a no-op.
func New(current store.FileState, guard Guard, entry EntryHook) *Machine {
	return &Machine{current: current, guard: guard, entry: entry}
}

// Current returns the machine's in-memory state. This is a cache for
// the duration of one Trigger call, never authoritative.
func (m *Machine) Current() store.FileState {
	return m.current
}

// Activate performs the initial-state entry hook with a null
// (zero-value) context. Callers must invoke this once before the first
// Trigger call.
func (m *Machine) Activate(ctx context.Context) error {
	if m.entry == nil {
		return nil
	}
	return m.entry(ctx, "", m.current, TransitionContext{})
}

// Trigger validates event against the current state, runs the guard (if
// any), then the entry hook for the destination state. On success the
// machine's current state advances. Any guard or entry hook error
// propagates to the caller unmodified — interpreting it is the
// transition manager's job.
func (m *Machine) Trigger(ctx context.Context, event Event, tctx TransitionContext) error {
	to, err := NextState(m.current, event)
	if err != nil {
		return err
	}

	if m.guard != nil {
		ok, err := m.guard(ctx, tctx)
		if err != nil {
			return fmt.Errorf("guard for %s: %w", event, err)
		}
		if !ok {
			return &EventNotAllowedError{State: m.current, Event: event}
		}
	}

	if m.entry != nil {
		if err := m.entry(ctx, m.current, to, tctx); err != nil {
			return err
		}
	}

	m.current = to
	return nil
}
