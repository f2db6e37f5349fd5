package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("Thủ tục và đăng ký nghĩa vụ quân sự là gì?", true)
	for _, tok := range tokens {
		_, isStop := Stopwords[tok]
		assert.False(t, isStop, "token %q should have been dropped as a stopword", tok)
		assert.GreaterOrEqual(t, len([]rune(tok)), 2)
	}
	assert.Contains(t, tokens, "thủ")
	assert.Contains(t, tokens, "đăng")
	assert.NotContains(t, tokens, "là")
}

func TestTokenizeKeepsStopwordsWhenDisabled(t *testing.T) {
	tokens := Tokenize("đăng ký và kết hôn", false)
	assert.Contains(t, tokens, "và")
}

func TestTokenizeEmptyInput(t *testing.T) {
	assert.Empty(t, Tokenize("", true))
}

func TestTokenizePunctuationBecomesSpace(t *testing.T) {
	tokens := Tokenize("kết-hôn, ly.hôn!", true)
	assert.Contains(t, tokens, "kết")
	assert.Contains(t, tokens, "hôn")
	assert.Contains(t, tokens, "ly")
}
