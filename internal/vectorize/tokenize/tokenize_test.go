package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens_LowercasesAndDropsStopWords(t *testing.T) {
	terms := Tokens("The Quick Brown Fox jumps over the lazy dog")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "over")
	assert.Contains(t, terms, porter2Stub("quick"))
	assert.Contains(t, terms, porter2Stub("jumps"))
}

func TestTokens_StemsWords(t *testing.T) {
	terms := Tokens("running runner runs")
	for _, term := range terms {
		assert.NotEqual(t, "running", term)
	}
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("and"))
	assert.False(t, IsStopWord("coordinate"))
}

func TestNgrams_ProducesUnigramsAndBigrams(t *testing.T) {
	grams := Ngrams([]string{"a", "b", "c"})
	assert.ElementsMatch(t, []string{"a", "b", "c", "a b", "b c"}, grams)
}

func TestNgrams_SingleTerm(t *testing.T) {
	grams := Ngrams([]string{"solo"})
	assert.Equal(t, []string{"solo"}, grams)
}

func TestNgrams_Empty(t *testing.T) {
	assert.Empty(t, Ngrams(nil))
}

func TestVectorize_CombinesTokensAndNgrams(t *testing.T) {
	terms := Vectorize("brain coordinate space")
	assert.Greater(t, len(terms), 2)
}

// porter2Stub mirrors Tokens' own stemming so expectations don't hardcode
// the exact stem the algorithm picks.
func porter2Stub(word string) string {
	terms := Tokens(word)
	if len(terms) == 0 {
		return word
	}
	return terms[0]
}
