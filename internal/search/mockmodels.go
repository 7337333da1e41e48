package search

import "context"

// MockReranker returns passages in reverse-length order (longer
// passages first), a cheap deterministic stand-in for a real reranking
// model that lets the pipeline's rerank stage be exercised without a
// network call. Mirrors indexadapter.MockAdapter's role for Query: a
// fixture, not a quality heuristic.
type MockReranker struct{}

func (MockReranker) Rerank(ctx context.Context, query string, passages []string) ([]int, error) {
	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		j := i
		for j > 0 && len(passages[order[j]]) > len(passages[order[j-1]]) {
			order[j], order[j-1] = order[j-1], order[j]
			j--
		}
	}
	return order, nil
}

// MockSynthesizer produces one claim per passage, quoting its first
// sentence verbatim so citation validation always succeeds. It exists
// for the same reason MockReranker does: exercising the synthesize and
// validate-citations stages without a real generation call.
type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(ctx context.Context, query string, passages []ResultPassage, failures []string) (SynthesisResult, error) {
	claims := make([]Claim, 0, len(passages))
	for _, pg := range passages {
		quote := firstSentence(pg.Text)
		if quote == "" {
			continue
		}
		claims = append(claims, Claim{
			ClaimText: quote,
			Citation: Citation{
				FileID:    pg.FileID,
				PassageID: pg.PassageID,
				Quote:     quote,
			},
		})
	}
	return SynthesisResult{
		Claims:  claims,
		Summary: "excerpts relevant to \"" + query + "\"",
	}, nil
}

func firstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '\n' {
			return text[:i]
		}
	}
	return text
}
