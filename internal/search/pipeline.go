package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/corpusgraph/internal/indexadapter"
	"github.com/roach88/corpusgraph/internal/store"
)

// Mode selects whether stage 5 (difficulty reordering) runs.
type Mode string

const (
	ModeResearch Mode = "research"
	ModeLearn    Mode = "learn"
)

const (
	defaultTopK           = 50
	defaultMaxPerGroup    = 2
	minPassagesToSynthesize = 5
	maxSynthesizeAttempts   = 2
)

// Request is one search invocation.
type Request struct {
	Query     string
	StoreIDs  []string
	Filters   indexadapter.QueryFilters
	TopK      int
	Mode      Mode
	Expand    bool
	Rerank    bool
	Synthesize bool
	SessionID string // empty means no active session; no events are emitted
}

// ResultPassage is one passage surfaced to the caller after retrieval,
// reranking, and diversification.
type ResultPassage struct {
	PassageID        string
	FileID           string
	Text             string
	Course           string
	DifficultyBucket string
	Rank             int
}

// Result is the pipeline's output for one request.
type Result struct {
	Query         string
	ExpandedQuery string
	Passages      []ResultPassage
	Claims        []Claim
	Summary       string
	Warnings      []string
}

// Pipeline wires the search stages to their dependencies. Reranker and
// Synthesizer may be nil, in which case their stages are skipped
// (original order kept; synthesis never attempted) regardless of the
// request's flags.
type Pipeline struct {
	store       *store.Store
	adapter     indexadapter.Adapter
	glossary    *Glossary
	reranker    Reranker
	synthesizer Synthesizer
	logger      *slog.Logger

	maxPerGroup int
}

// Options configures a Pipeline.
type Options struct {
	Glossary    *Glossary
	Reranker    Reranker
	Synthesizer Synthesizer
	MaxPerGroup int // default 2
	Logger      *slog.Logger
}

// New constructs a Pipeline.
func New(s *store.Store, adapter indexadapter.Adapter, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPerGroup := opts.MaxPerGroup
	if maxPerGroup <= 0 {
		maxPerGroup = defaultMaxPerGroup
	}
	return &Pipeline{
		store:       s,
		adapter:     adapter,
		glossary:    opts.Glossary,
		reranker:    opts.Reranker,
		synthesizer: opts.Synthesizer,
		logger:      logger,
		maxPerGroup: maxPerGroup,
	}
}

// Run executes the full pipeline for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{Query: req.Query, ExpandedQuery: req.Query}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	queryText := req.Query
	if req.Expand && p.glossary != nil {
		expanded, changed := p.glossary.Expand(req.Query)
		if changed {
			queryText = expanded
		}
	}
	res.ExpandedQuery = queryText

	chunks, err := p.adapter.Query(ctx, req.StoreIDs, queryText, req.Filters, topK)
	if err != nil {
		p.emitError(ctx, req.SessionID, "retrieve", err)
		return Result{}, fmt.Errorf("search: retrieve: %w", err)
	}

	passages := make([]ResultPassage, 0, len(chunks))
	for i, c := range chunks {
		pid := store.PassageID(c.FileID, c.PassageText)
		sum := sha256.Sum256([]byte(c.PassageText))
		if err := p.store.UpsertPassage(ctx, store.PassageRecord{
			PassageID:   pid,
			FileID:      c.FileID,
			ContentHash: hex.EncodeToString(sum[:]),
			PassageText: c.PassageText,
		}); err != nil {
			p.logger.Warn("failed to upsert passage", "passage_id", pid, "error", err)
		}

		course, difficulty := passageMeta(c.MetadataJSON)
		passages = append(passages, ResultPassage{
			PassageID:        pid,
			FileID:           c.FileID,
			Text:             c.PassageText,
			Course:           course,
			DifficultyBucket: difficulty,
			Rank:             i,
		})
	}

	if req.Rerank && p.reranker != nil && len(passages) > 0 {
		passages, res.Warnings = p.rerank(ctx, queryText, passages, res.Warnings)
	}

	passages = diversify(passages, p.maxPerGroup, topK)

	if req.Mode == ModeLearn {
		passages = orderByDifficulty(passages)
	}

	res.Passages = passages

	if req.Synthesize && p.synthesizer != nil {
		claims, summary, warnings := p.synthesize(ctx, queryText, passages)
		res.Claims = claims
		res.Summary = summary
		res.Warnings = append(res.Warnings, warnings...)
	}

	p.emitSearch(ctx, req.SessionID, res)
	if len(res.Claims) > 0 {
		p.emitSynthesize(ctx, req.SessionID, res)
	}

	return res, nil
}

func (p *Pipeline) rerank(ctx context.Context, query string, passages []ResultPassage, warnings []string) ([]ResultPassage, []string) {
	texts := make([]string, len(passages))
	for i, pg := range passages {
		texts[i] = truncateForRerank(pg.Text)
	}

	order, err := p.reranker.Rerank(ctx, query, texts)
	if err != nil {
		p.logger.Warn("rerank failed, keeping retrieval order", "error", err)
		return passages, append(warnings, "rerank failed, original order kept: "+err.Error())
	}
	if len(order) != len(passages) {
		p.logger.Warn("rerank returned unexpected index count, keeping retrieval order", "got", len(order), "want", len(passages))
		return passages, append(warnings, "rerank returned malformed order, original order kept")
	}

	out := make([]ResultPassage, len(passages))
	seen := make(map[int]bool, len(order))
	for newRank, origIdx := range order {
		if origIdx < 0 || origIdx >= len(passages) || seen[origIdx] {
			p.logger.Warn("rerank returned invalid index, keeping retrieval order")
			return passages, append(warnings, "rerank returned invalid order, original order kept")
		}
		seen[origIdx] = true
		pg := passages[origIdx]
		pg.Rank = newRank
		out[newRank] = pg
	}
	return out, warnings
}

// synthesize attempts the structured generation call and the single
// citation-correction re-prompt.
func (p *Pipeline) synthesize(ctx context.Context, query string, passages []ResultPassage) ([]Claim, string, []string) {
	if len(passages) < minPassagesToSynthesize {
		return nil, "", []string{"too few eligible passages to synthesize, returning excerpts only"}
	}

	byID := make(map[string]ResultPassage, len(passages))
	for _, pg := range passages {
		byID[pg.PassageID] = pg
	}

	var warnings []string
	var failures []string

	for attempt := 0; attempt < maxSynthesizeAttempts; attempt++ {
		result, err := p.synthesizer.Synthesize(ctx, query, passages, failures)
		if err != nil {
			return nil, "", append(warnings, "synthesis failed, falling back to excerpts: "+err.Error())
		}

		validated, attemptFailures := validateClaims(result.Claims, byID)
		if len(attemptFailures) == 0 {
			return validated, result.Summary, warnings
		}

		if attempt == maxSynthesizeAttempts-1 {
			for _, f := range attemptFailures {
				warnings = append(warnings, "citation validation failed: "+f)
			}
			if len(validated) == 0 {
				warnings = append(warnings, "no claims validated, falling back to excerpts")
			}
			return validated, result.Summary, warnings
		}

		failures = attemptFailures
	}

	return nil, "", warnings
}

func validateClaims(claims []Claim, byID map[string]ResultPassage) (valid []Claim, failures []string) {
	for _, c := range claims {
		pg, ok := byID[c.Citation.PassageID]
		if !ok {
			failures = append(failures, fmt.Sprintf("claim %q cites unknown passage %s", c.ClaimText, c.Citation.PassageID))
			continue
		}
		if !validQuote(c.Citation.Quote, pg.Text) {
			failures = append(failures, fmt.Sprintf("claim %q quote not found in passage %s", c.ClaimText, c.Citation.PassageID))
			continue
		}
		valid = append(valid, c)
	}
	return valid, failures
}

// passageMeta extracts the course and difficulty fields a scanner may
// have recorded for this passage's owning file, tolerating absent or
// malformed metadata.
func passageMeta(metadataJSON string) (course, difficulty string) {
	if metadataJSON == "" {
		return "", ""
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
		return "", ""
	}
	return meta["course"], meta["difficulty"]
}

func (p *Pipeline) emitSearch(ctx context.Context, sessionID string, res Result) {
	if sessionID == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"query":          res.Query,
		"expanded_query": res.ExpandedQuery,
		"passage_ids":    passageIDs(res.Passages),
		"warnings":       res.Warnings,
	})
	if err != nil {
		p.logger.Warn("failed to marshal search event payload", "error", err)
		return
	}
	if _, err := p.store.AppendEvent(ctx, sessionID, store.EventSearch, string(payload)); err != nil {
		p.logger.Warn("failed to append search event", "error", err)
	}
}

func (p *Pipeline) emitSynthesize(ctx context.Context, sessionID string, res Result) {
	if sessionID == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"summary": res.Summary,
		"claims":  res.Claims,
	})
	if err != nil {
		p.logger.Warn("failed to marshal synthesize event payload", "error", err)
		return
	}
	if _, err := p.store.AppendEvent(ctx, sessionID, store.EventSynthesize, string(payload)); err != nil {
		p.logger.Warn("failed to append synthesize event", "error", err)
	}
}

func (p *Pipeline) emitError(ctx context.Context, sessionID, stage string, cause error) {
	if sessionID == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"stage": stage,
		"error": cause.Error(),
	})
	if err != nil {
		return
	}
	if _, err := p.store.AppendEvent(ctx, sessionID, store.EventError, string(payload)); err != nil {
		p.logger.Warn("failed to append error event", "error", err)
	}
}

func passageIDs(passages []ResultPassage) []string {
	ids := make([]string, len(passages))
	for i, pg := range passages {
		ids[i] = pg.PassageID
	}
	return ids
}
