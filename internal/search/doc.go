// Package search implements the eight-stage retrieval pipeline: expand
// the query against a synonym glossary, retrieve grounding chunks from
// the index adapter, rerank them with an external ranking model,
// diversify by source file, optionally reorder by difficulty in
// "learn" mode, optionally synthesize cited claims, validate those
// citations against the stored passage text, and emit session events
// recording what happened.
//
// Every stage short-circuits independently on failure per its own
// degradation policy (keep original order, fall back to excerpts,
// surface a warning) rather than aborting the whole request, except
// for the retrieve stage, whose failure fails the request outright —
// there is nothing to show the user without it.
package search
