package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var citationFold = cases.Fold()

// quotePairs maps Unicode quotation marks and dashes to a single ASCII
// representative, so a claim quoting curly quotes or an em-dash still
// matches stored passage text written with straight quotes and
// hyphens, and vice versa.
var quotePairs = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", "\"", "”", "\"", "„", "\"", "‟", "\"",
	"–", "-", "—", "-", "−", "-",
)

// normalizeForCitation collapses whitespace, folds Unicode quotation
// marks and dashes to ASCII, treats hyphens as word-boundary
// whitespace, case-folds, and applies NFKC normalization so that
// cosmetic differences (curly vs. straight quotes, hyphen vs.
// en-dash, hyphenated vs. spaced compounds, capitalization, repeated
// whitespace) never cause a genuine quote to fail the substring
// check.
func normalizeForCitation(s string) string {
	s = norm.NFKC.String(s)
	s = quotePairs.Replace(s)
	s = strings.ReplaceAll(s, "-", " ")
	s = citationFold.String(s)
	s = collapseWhitespace(s)
	return strings.TrimSpace(s)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// validQuote reports whether quote, once normalized, is a substring of
// passageText, once normalized the same way.
func validQuote(quote, passageText string) bool {
	if strings.TrimSpace(quote) == "" {
		return false
	}
	return strings.Contains(normalizeForCitation(passageText), normalizeForCitation(quote))
}
