package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/corpusgraph/internal/fsm"
	"github.com/roach88/corpusgraph/internal/store"
)

// postCommitError wraps an AfterCommitHook failure so Transition can
// tell it apart from a pre-commit failure without string matching.
type postCommitError struct {
	err error
}

func (e *postCommitError) Error() string { return e.err.Error() }
func (e *postCommitError) Unwrap() error { return e.err }

// Manager is the integration bridge every transition flows through. It
// is the only component that acquires per-file locks, constructs
// ephemeral FSM instances, and performs the OCC-guarded write.
type Manager struct {
	store  *store.Store
	locks  *LockManager
	logger *slog.Logger
}

// New constructs a Manager. locks should be a process-scoped singleton
// shared by every Manager instance in the process.
func New(s *store.Store, locks *LockManager, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, locks: locks, logger: logger}
}

// Transition drives one (file, event) through the FSM and the store:
// lock the path, read its current state, validate the requested event
// against the FSM table, attempt the OCC-guarded write, and classify
// the outcome. payload should be one of the types in payload.go,
// matched to event.
func (m *Manager) Transition(ctx context.Context, filePath string, event fsm.Event, payload any) (Outcome, error) {
	mu := m.locks.Acquire(filePath)
	mu.Lock()
	defer mu.Unlock()

	state, version, err := m.store.ReadState(ctx, filePath)
	if err != nil {
		return FailedPrecommit, fmt.Errorf("transition %s: read state: %w", filePath, err)
	}

	to, err := fsm.NextState(state, event)
	if err != nil {
		m.logger.Debug("transition rejected by guard", "path", filePath, "event", event, "state", state)
		return RejectedGuard, nil
	}

	if err := validatePayload(to, payload); err != nil {
		return FailedPrecommit, fmt.Errorf("transition %s: %w", filePath, err)
	}

	tctx := fsm.TransitionContext{FilePath: filePath, ExpectedVersion: version, Payload: payload}
	machine := fsm.New(state, nil, m.entryHook)

	if err := machine.Activate(ctx); err != nil {
		return FailedPrecommit, fmt.Errorf("transition %s: activate: %w", filePath, err)
	}

	err = machine.Trigger(ctx, event, tctx)
	switch {
	case err == nil:
		m.logger.Info("transition succeeded", "path", filePath, "event", event, "from", state, "to", to)
		return Success, nil
	case isStaleError(err):
		m.logger.Info("transition rejected stale", "path", filePath, "event", event)
		return RejectedStale, nil
	default:
		var pc *postCommitError
		if errors.As(err, &pc) {
			m.logger.Error("transition failed after commit", "path", filePath, "event", event, "error", pc.err)
			return FailedPostcommit, pc.err
		}
		m.logger.Error("transition failed before commit", "path", filePath, "event", event, "error", err)
		return FailedPrecommit, err
	}
}

// entryHook performs the guarded OCC write. It tolerates the
// null-context initial-state activation (from == "") as a no-op.
func (m *Manager) entryHook(ctx context.Context, from, to store.FileState, tctx fsm.TransitionContext) error {
	if from == "" {
		return nil
	}

	tx, err := m.store.BeginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}
	defer tx.Rollback()

	fields := fieldsForPayload(tctx.Payload)

	rows, err := m.store.GuardedUpdate(ctx, tx, tctx.FilePath, from, tctx.ExpectedVersion, to, fields)
	if err != nil {
		return fmt.Errorf("guarded update: %w", err)
	}
	if rows == 0 {
		return &store.ErrStaleTransition{Path: tctx.FilePath, ExpectedState: from, ExpectedVersion: tctx.ExpectedVersion}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if hook, ok := tctx.Payload.(AfterCommitHook); ok {
		if err := hook.AfterCommit(ctx); err != nil {
			return &postCommitError{err: err}
		}
	}

	return nil
}

func isStaleError(err error) bool {
	var stale *store.ErrStaleTransition
	return errors.As(err, &stale)
}

func fieldsForPayload(payload any) store.GuardedUpdateFields {
	switch p := payload.(type) {
	case ProcessingCompletePayload:
		return store.GuardedUpdateFields{ExternalFileID: p.ExternalFileID, ExternalStoreID: p.ExternalStoreID}
	case FailurePayload:
		return store.GuardedUpdateFields{LastError: p.Error, FailureStage: p.Stage}
	default:
		return store.GuardedUpdateFields{}
	}
}

// validatePayload enforces the invariants on terminal states before the
// write is attempted: indexed rows need a non-empty external file id,
// failed rows need a non-empty error and stage.
func validatePayload(to store.FileState, payload any) error {
	switch to {
	case store.StateIndexed:
		p, ok := payload.(ProcessingCompletePayload)
		if !ok || p.ExternalFileID == "" {
			return errors.New("processing_complete requires a non-empty external file id")
		}
	case store.StateFailed:
		p, ok := payload.(FailurePayload)
		if !ok || p.Error == "" || p.Stage == "" {
			return errors.New("fail_* requires a non-empty error and failure stage")
		}
	}
	return nil
}
