package search

import "context"

// rerankTruncateChars bounds how much of a passage is sent to the
// reranker, controlling token cost on the external call.
const rerankTruncateChars = 500

// Reranker submits passages to an external ranking model and returns
// their new order as indices into the input slice. Implementations
// fix temperature themselves; the pipeline only cares about the
// returned order.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) (order []int, err error)
}

// Synthesizer issues a structured generation call asking for claims
// grounded in the given passages, citing one of them per claim.
// failures, when non-empty, names specific citation-validation
// failures from a prior attempt and asks the model to correct them;
// the pipeline calls Synthesize at most twice per request.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, passages []ResultPassage, failures []string) (SynthesisResult, error)
}

// SynthesisResult is the structured output of one Synthesize call.
type SynthesisResult struct {
	Claims  []Claim
	Summary string
}

// Claim is one synthesized, cited assertion.
type Claim struct {
	ClaimText string
	Citation  Citation
}

// Citation identifies the passage and exact quote backing a claim.
type Citation struct {
	FileID    string
	PassageID string
	Quote     string
}

func truncateForRerank(s string) string {
	if len(s) <= rerankTruncateChars {
		return s
	}
	return s[:rerankTruncateChars]
}
