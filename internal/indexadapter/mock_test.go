package indexadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAdapterUploadThenPollBecomesReady(t *testing.T) {
	m := NewMockAdapter(LatencyZero, 1)
	ctx := context.Background()

	handle, err := m.Upload(ctx, "/tmp/ep1.txt", "deadbeef", "{}")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	time.Sleep(80 * time.Millisecond)

	res, err := m.Poll(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, PollReady, res.Phase)
	assert.NotEmpty(t, res.ExternalFileID)
	assert.NotEmpty(t, res.ExternalStoreID)
}

func TestMockAdapterPollUnknownHandleRejects(t *testing.T) {
	m := NewMockAdapter(LatencyZero, 1)
	_, err := m.Poll(context.Background(), "op-does-not-exist")
	require.Error(t, err)
	assert.Equal(t, KindReject, KindOf(err))
}

func TestMockAdapterUploadIsDeterministicForSameSeed(t *testing.T) {
	ctx := context.Background()
	a := NewMockAdapter(LatencyZero, 42)
	b := NewMockAdapter(LatencyZero, 42)

	handleA, err := a.Upload(ctx, "/tmp/ep1.txt", "deadbeef", "{}")
	require.NoError(t, err)
	handleB, err := b.Upload(ctx, "/tmp/ep1.txt", "deadbeef", "{}")
	require.NoError(t, err)
	assert.Equal(t, handleA, handleB)

	time.Sleep(80 * time.Millisecond)
	resA, err := a.Poll(ctx, handleA)
	require.NoError(t, err)
	resB, err := b.Poll(ctx, handleB)
	require.NoError(t, err)
	assert.Equal(t, resA.ExternalFileID, resB.ExternalFileID)
}

func TestMockAdapterRateLimitedProfileInjectsRateLimitErrors(t *testing.T) {
	m := NewMockAdapter(LatencyRateLimited, 7)
	ctx := context.Background()

	var sawRateLimit bool
	for i := 0; i < 6; i++ {
		_, err := m.Upload(ctx, "/tmp/ep1.txt", "deadbeef", "{}")
		if KindOf(err) == KindRateLimit {
			sawRateLimit = true
		}
	}
	assert.True(t, sawRateLimit)
}

func TestMockAdapterQueryReturnsSeededCorpusUpToTopK(t *testing.T) {
	m := NewMockAdapter(LatencyZero, 1)
	m.SeedCorpus([]GroundingChunk{
		{FileID: "f1", PassageID: "p1", PassageText: "alpha"},
		{FileID: "f1", PassageID: "p2", PassageText: "beta"},
		{FileID: "f2", PassageID: "p3", PassageText: "gamma"},
	})

	chunks, err := m.Query(context.Background(), []string{"store-1"}, "alpha", QueryFilters{}, 2)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
