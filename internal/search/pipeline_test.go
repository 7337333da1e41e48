package search

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/corpusgraph/internal/indexadapter"
	"github.com/roach88/corpusgraph/internal/store"
)

type stubAdapter struct {
	chunks []indexadapter.GroundingChunk
	err    error
}

func (s *stubAdapter) Upload(ctx context.Context, localPath, contentHash, metadataJSON string) (string, error) {
	return "", nil
}
func (s *stubAdapter) Poll(ctx context.Context, operationHandle string) (indexadapter.PollResult, error) {
	return indexadapter.PollResult{}, nil
}
func (s *stubAdapter) Query(ctx context.Context, storeIDs []string, queryText string, filters indexadapter.QueryFilters, topK int) ([]indexadapter.GroundingChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

type reverseReranker struct{}

func (reverseReranker) Rerank(ctx context.Context, query string, passages []string) ([]int, error) {
	order := make([]int, len(passages))
	for i := range passages {
		order[i] = len(passages) - 1 - i
	}
	return order, nil
}

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, passages []string) ([]int, error) {
	return nil, assertErr("reranker unavailable")
}

type stubSynthesizer struct {
	result SynthesisResult
	err    error
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, query string, passages []ResultPassage, failures []string) (SynthesisResult, error) {
	return s.result, s.err
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func chunk(fileID, text string) indexadapter.GroundingChunk {
	return indexadapter.GroundingChunk{FileID: fileID, PassageText: text}
}

func TestPipelineRetrieveFailureSurfacesError(t *testing.T) {
	s := newTestStore(t)
	pipe := New(s, &stubAdapter{err: assertErr("index unavailable")}, Options{})

	_, err := pipe.Run(context.Background(), Request{Query: "ethics"})
	assert.Error(t, err)
}

func TestPipelineExpandsQueryWhenGlossaryMatches(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/glossary.yaml"
	require.NoError(t, os.WriteFile(path, []byte("terms:\n  - term: altruism\n    synonyms: [selflessness]\n"), 0o644))
	glossary, err := LoadGlossary(path)
	require.NoError(t, err)

	s := newTestStore(t)
	adapter := &stubAdapter{chunks: []indexadapter.GroundingChunk{chunk("f1", "altruism is a virtue")}}
	pipe := New(s, adapter, Options{Glossary: glossary})

	res, err := pipe.Run(context.Background(), Request{Query: "altruism", Expand: true})
	require.NoError(t, err)
	assert.Contains(t, res.ExpandedQuery, "selflessness")
}

func TestPipelineRerankFailureKeepsOrderAndWarns(t *testing.T) {
	s := newTestStore(t)
	adapter := &stubAdapter{chunks: []indexadapter.GroundingChunk{
		chunk("f1", "passage one"),
		chunk("f2", "passage two"),
	}}
	pipe := New(s, adapter, Options{Reranker: failingReranker{}})

	res, err := pipe.Run(context.Background(), Request{Query: "q", Rerank: true})
	require.NoError(t, err)
	require.Len(t, res.Passages, 2)
	assert.Equal(t, "f1", res.Passages[0].FileID)
	assert.NotEmpty(t, res.Warnings)
}

func TestPipelineRerankReordersPassages(t *testing.T) {
	s := newTestStore(t)
	adapter := &stubAdapter{chunks: []indexadapter.GroundingChunk{
		chunk("f1", "passage one"),
		chunk("f2", "passage two"),
	}}
	pipe := New(s, adapter, Options{Reranker: reverseReranker{}})

	res, err := pipe.Run(context.Background(), Request{Query: "q", Rerank: true})
	require.NoError(t, err)
	require.Len(t, res.Passages, 2)
	assert.Equal(t, "f2", res.Passages[0].FileID)
}

func TestPipelineSynthesizeBelowMinimumSkipsAndWarns(t *testing.T) {
	s := newTestStore(t)
	adapter := &stubAdapter{chunks: []indexadapter.GroundingChunk{chunk("f1", "only one passage")}}
	pipe := New(s, adapter, Options{Synthesizer: &stubSynthesizer{}})

	res, err := pipe.Run(context.Background(), Request{Query: "q", Synthesize: true})
	require.NoError(t, err)
	assert.Empty(t, res.Claims)
	assert.NotEmpty(t, res.Warnings)
}

func TestPipelineSynthesizeValidatesCitations(t *testing.T) {
	s := newTestStore(t)
	var chunks []indexadapter.GroundingChunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, chunk("f1", "concepts are formed by measurement-omission, entry "+string(rune('a'+i))))
	}
	adapter := &stubAdapter{chunks: chunks}

	pipe := New(s, adapter, Options{})
	res, err := pipe.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	require.Len(t, res.Passages, 5)

	pid := res.Passages[0].PassageID
	synth := &stubSynthesizer{result: SynthesisResult{
		Claims: []Claim{{
			ClaimText: "concepts are formed by omitting measurement",
			Citation:  Citation{FileID: "f1", PassageID: pid, Quote: "Concepts are formed by measurement omission"},
		}},
		Summary: "a summary",
	}}
	pipe2 := New(s, adapter, Options{Synthesizer: synth})
	res2, err := pipe2.Run(context.Background(), Request{Query: "q", Synthesize: true})
	require.NoError(t, err)
	require.Len(t, res2.Claims, 1)
}
