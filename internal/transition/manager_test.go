package transition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/corpusgraph/internal/fsm"
	"github.com/roach88/corpusgraph/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, NewLockManager(), nil), s
}

func TestTransitionSuccessAdvancesState(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, s.DiscoverOrUpdate(ctx, "a.txt", "h1", time.Now(), "{}"))

	outcome, err := m.Transition(ctx, "a.txt", fsm.EventStartUpload, StartUploadPayload{})
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)

	state, version, err := s.ReadState(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, store.StateUploading, state)
	assert.EqualValues(t, 1, version)
}

func TestTransitionRejectsIllegalEvent(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, s.DiscoverOrUpdate(ctx, "a.txt", "h1", time.Now(), "{}"))

	outcome, err := m.Transition(ctx, "a.txt", fsm.EventUploadComplete, UploadCompletePayload{})
	require.NoError(t, err)
	assert.Equal(t, RejectedGuard, outcome)

	state, version, err := s.ReadState(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, store.StateUntracked, state)
	assert.EqualValues(t, 0, version)
}

func TestTransitionToIndexedRequiresExternalFileID(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, s.DiscoverOrUpdate(ctx, "a.txt", "h1", time.Now(), "{}"))
	_, err := m.Transition(ctx, "a.txt", fsm.EventStartUpload, StartUploadPayload{})
	require.NoError(t, err)
	_, err = m.Transition(ctx, "a.txt", fsm.EventUploadComplete, UploadCompletePayload{})
	require.NoError(t, err)

	outcome, err := m.Transition(ctx, "a.txt", fsm.EventProcessingComplete, ProcessingCompletePayload{})
	assert.Error(t, err)
	assert.Equal(t, FailedPrecommit, outcome)
}

func TestTransitionToFailedSetsDiagnostics(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, s.DiscoverOrUpdate(ctx, "a.txt", "h1", time.Now(), "{}"))
	_, err := m.Transition(ctx, "a.txt", fsm.EventStartUpload, StartUploadPayload{})
	require.NoError(t, err)

	outcome, err := m.Transition(ctx, "a.txt", fsm.EventFailUpload, FailurePayload{Error: "timeout", Stage: "upload"})
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)

	rec, err := s.ReadFile(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, store.StateFailed, rec.State)
	assert.Equal(t, "timeout", rec.LastError)
	assert.Equal(t, "upload", rec.FailureStage)
}

// injectedFailure is an AfterCommitHook that always errors, simulating
// a raise in the entry hook's post-commit side effect after the UPDATE
// has already committed.
type injectedFailure struct{}

func (injectedFailure) AfterCommit(ctx context.Context) error {
	return errors.New("injected post-commit failure")
}

func TestTransitionPostCommitFailureLeavesStateAdvanced(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, s.DiscoverOrUpdate(ctx, "a.txt", "h1", time.Now(), "{}"))

	outcome, err := m.Transition(ctx, "a.txt", fsm.EventStartUpload, injectedFailurePayload{})
	require.Error(t, err)
	assert.Equal(t, FailedPostcommit, outcome)

	state, version, err := s.ReadState(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, store.StateUploading, state)
	assert.EqualValues(t, 1, version)
}

// injectedFailurePayload composes StartUploadPayload's (empty) shape
// with the AfterCommitHook capability.
type injectedFailurePayload struct {
	injectedFailure
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, s.DiscoverOrUpdate(ctx, "a.txt", "h1", time.Now(), "{}"))

	const n = 10
	outcomes := make([]Outcome, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = m.Transition(ctx, "a.txt", fsm.EventStartUpload, StartUploadPayload{})
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case Success:
			successes++
		case RejectedStale, RejectedGuard:
			// expected for the losers
		default:
			t.Fatalf("unexpected outcome %v", outcomes[i])
		}
	}
	assert.Equal(t, 1, successes)

	state, version, err := s.ReadState(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, store.StateUploading, state)
	assert.EqualValues(t, 1, version)
}
