package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidQuoteAcceptsHyphenAndCaseVariance(t *testing.T) {
	passage := "concepts are formed by measurement-omission"
	quote := "Concepts are formed by measurement omission"
	assert.True(t, validQuote(quote, passage))
}

func TestValidQuoteRejectsUnrelatedText(t *testing.T) {
	passage := "concepts are formed by measurement-omission"
	quote := "concepts are formed by pure intuition"
	assert.False(t, validQuote(quote, passage))
}

func TestValidQuoteNormalizesSmartQuotesAndDashes(t *testing.T) {
	passage := `she said "hello" — once more`
	quote := "she said “hello” – once more"
	assert.True(t, validQuote(quote, passage))
}

func TestValidQuoteCollapsesWhitespace(t *testing.T) {
	passage := "a   passage   with   extra   spacing"
	quote := "a passage with extra spacing"
	assert.True(t, validQuote(quote, passage))
}

func TestValidQuoteRejectsEmpty(t *testing.T) {
	assert.False(t, validQuote("", "any passage text"))
}
