package search

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// term is one glossary entry as it appears in the YAML document.
type term struct {
	Term     string   `yaml:"term"`
	Synonyms []string `yaml:"synonyms"`
}

// glossaryDoc is the top-level YAML shape: a sequence of terms.
type glossaryDoc struct {
	Terms []term `yaml:"terms"`
}

// entry pairs a glossary term with the compiled word-boundary pattern
// used to match it.
type entry struct {
	term    term
	pattern *regexp.Regexp
}

// Glossary expands query terms against a curated synonym list. Matching
// is case-insensitive and longest-phrase-first, so a multi-word term
// like "measurement omission" is matched before its constituent words.
type Glossary struct {
	// entries is sorted longest-phrase-first so Expand can greedily
	// match the most specific term at each position.
	entries []entry
}

// LoadGlossary reads and parses a glossary YAML file.
func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary %s: %w", path, err)
	}

	var doc glossaryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse glossary %s: %w", path, err)
	}

	entries := make([]entry, 0, len(doc.Terms))
	for _, t := range doc.Terms {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(t.Term) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile glossary term %q: %w", t.Term, err)
		}
		entries = append(entries, entry{term: t, pattern: pattern})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].term.Term) > len(entries[j].term.Term)
	})

	return &Glossary{entries: entries}, nil
}

// Expand duplicates every term in query that matches a glossary entry
// (to boost its weight in retrieval) and appends up to two synonyms per
// matched term. A term that only occurs inside a longer matched phrase
// is not matched on its own. If no term in query matches the glossary,
// Expand returns query unchanged and reports no expansion occurred.
func (g *Glossary) Expand(query string) (expanded string, changed bool) {
	if g == nil || len(g.entries) == 0 || strings.TrimSpace(query) == "" {
		return query, false
	}

	var additions []string
	remaining := query
	for _, e := range g.entries {
		if !e.pattern.MatchString(remaining) {
			continue
		}
		// Blank out the matched phrase so shorter entries cannot match
		// inside it.
		remaining = e.pattern.ReplaceAllString(remaining, " ")
		additions = append(additions, e.term.Term)
		synonyms := e.term.Synonyms
		if len(synonyms) > 2 {
			synonyms = synonyms[:2]
		}
		additions = append(additions, synonyms...)
	}

	if len(additions) == 0 {
		return query, false
	}

	return query + " " + strings.Join(additions, " "), true
}
