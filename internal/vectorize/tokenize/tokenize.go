// Package tokenize implements the count-vectorizer tokenizer shared by the
// vocabulary-extraction and vectorization stages (spec.md §4.6): NFKC
// normalization, lowercasing, stop-word removal, Porter2 stemming and 1-2
// gram assembly. Grounded on phrase.go's processStopWords/porter2.Stem
// pipeline, generalized into an ngram-producing tokenizer.
package tokenize

import (
	"regexp"
	"strings"

	"github.com/surgebase/porter2"
	"golang.org/x/text/unicode/norm"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokens splits text into normalized, stemmed, stop-word-filtered terms in
// order of appearance.
func Tokens(text string) []string {
	normalized := norm.NFKC.String(text)
	words := wordPattern.FindAllString(strings.ToLower(normalized), -1)

	terms := make([]string, 0, len(words))
	for _, w := range words {
		if IsStopWord(w) {
			continue
		}
		terms = append(terms, porter2.Stem(w))
	}
	return terms
}

// Ngrams assembles unigrams and bigrams from a term sequence, matching the
// vectorizer's 1-2 gram range.
func Ngrams(terms []string) []string {
	grams := make([]string, 0, 2*len(terms))
	grams = append(grams, terms...)
	for i := 0; i+1 < len(terms); i++ {
		grams = append(grams, terms[i]+" "+terms[i+1])
	}
	return grams
}

// Vectorize concatenates Tokens and Ngrams for a single text blob, the
// tokenizer contract used to turn a CSV text field into vocabulary terms.
func Vectorize(text string) []string {
	return Ngrams(Tokens(text))
}
