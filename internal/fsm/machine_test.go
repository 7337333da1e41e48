package fsm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/corpusgraph/internal/store"
)

func TestNextStateLegalEdges(t *testing.T) {
	cases := []struct {
		from store.FileState
		evt  Event
		to   store.FileState
	}{
		{store.StateUntracked, EventStartUpload, store.StateUploading},
		{store.StateUploading, EventUploadComplete, store.StateProcessing},
		{store.StateUploading, EventFailUpload, store.StateFailed},
		{store.StateProcessing, EventProcessingComplete, store.StateIndexed},
		{store.StateProcessing, EventFailProcessing, store.StateFailed},
	}
	for _, c := range cases {
		to, err := NextState(c.from, c.evt)
		require.NoError(t, err)
		assert.Equal(t, c.to, to)
	}
}

func TestNextStateIllegalEdgeErrors(t *testing.T) {
	_, err := NextState(store.StateIndexed, EventStartUpload)
	var notAllowed *EventNotAllowedError
	assert.ErrorAs(t, err, &notAllowed)

	_, err = NextState(store.StateUntracked, EventUploadComplete)
	assert.ErrorAs(t, err, &notAllowed)
}

func TestMachineTriggerAdvancesState(t *testing.T) {
	var entered []store.FileState
	entry := func(ctx context.Context, from, to store.FileState, tctx TransitionContext) error {
		entered = append(entered, to)
		return nil
	}

	m := New(store.StateUntracked, nil, entry)
	require.NoError(t, m.Activate(context.Background()))

	require.NoError(t, m.Trigger(context.Background(), EventStartUpload, TransitionContext{FilePath: "a.txt", ExpectedVersion: 0}))
	assert.Equal(t, store.StateUploading, m.Current())
	assert.Equal(t, []store.FileState{store.StateUntracked, store.StateUploading}, entered)
}

func TestMachineTriggerRejectsIllegalEvent(t *testing.T) {
	m := New(store.StateIndexed, nil, nil)
	err := m.Trigger(context.Background(), EventStartUpload, TransitionContext{})
	var notAllowed *EventNotAllowedError
	assert.ErrorAs(t, err, &notAllowed)
	assert.Equal(t, store.StateIndexed, m.Current())
}

func TestMachineTriggerPropagatesGuardFailure(t *testing.T) {
	guard := func(ctx context.Context, tctx TransitionContext) (bool, error) {
		return false, nil
	}
	m := New(store.StateUntracked, guard, nil)
	err := m.Trigger(context.Background(), EventStartUpload, TransitionContext{})
	var notAllowed *EventNotAllowedError
	assert.ErrorAs(t, err, &notAllowed)
}

func TestMachineTriggerPropagatesEntryError(t *testing.T) {
	boom := assert.AnError
	entry := func(ctx context.Context, from, to store.FileState, tctx TransitionContext) error {
		return boom
	}
	m := New(store.StateUntracked, nil, entry)
	err := m.Trigger(context.Background(), EventStartUpload, TransitionContext{})
	assert.ErrorIs(t, err, boom)
	// On entry-hook failure the machine must not advance.
	assert.Equal(t, store.StateUntracked, m.Current())
}
