package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGlossary(t *testing.T, yamlDoc string) *Glossary {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "glossary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	g, err := LoadGlossary(path)
	require.NoError(t, err)
	return g
}

func TestGlossaryExpandNoMatchReturnsInputUnchanged(t *testing.T) {
	g := writeGlossary(t, `
terms:
  - term: altruism
    synonyms: [selflessness]
`)
	expanded, changed := g.Expand("capitalism and freedom")
	assert.False(t, changed)
	assert.Equal(t, "capitalism and freedom", expanded)
}

func TestGlossaryExpandAppendsSynonymsUpToTwo(t *testing.T) {
	g := writeGlossary(t, `
terms:
  - term: altruism
    synonyms: [selflessness, self-sacrifice, charity]
`)
	expanded, changed := g.Expand("why is altruism praised")
	require.True(t, changed)
	assert.Contains(t, expanded, "altruism")
	assert.Contains(t, expanded, "selflessness")
	assert.Contains(t, expanded, "self-sacrifice")
	assert.NotContains(t, expanded, "charity")
}

func TestGlossaryExpandPrefersLongestPhrase(t *testing.T) {
	g := writeGlossary(t, `
terms:
  - term: measurement omission
    synonyms: [abstraction]
  - term: measurement
    synonyms: [quantity]
`)
	expanded, changed := g.Expand("concepts formed by measurement omission")
	require.True(t, changed)
	assert.Contains(t, expanded, "abstraction")
}

func TestGlossaryExpandIsWordBoundaryAware(t *testing.T) {
	g := writeGlossary(t, `
terms:
  - term: cap
    synonyms: [ceiling]
`)
	expanded, changed := g.Expand("the capital city")
	assert.False(t, changed)
	assert.Equal(t, "the capital city", expanded)
}

func TestGlossaryExpandCaseInsensitive(t *testing.T) {
	g := writeGlossary(t, `
terms:
  - term: Altruism
    synonyms: [selflessness]
`)
	expanded, changed := g.Expand("ALTRUISM in ethics")
	require.True(t, changed)
	assert.Contains(t, expanded, "selflessness")
}
