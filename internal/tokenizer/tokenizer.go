// Package tokenizer is the single source of truth for token equivalence
// between BM25 index build time and query time.
package tokenizer

import (
	"regexp"
	"strings"
)

// Stopwords is the fixed, process-lifetime domain stopword set. Matches
// against lowercase tokens only.
var Stopwords = map[string]struct{}{
	"và": {}, "của": {}, "có": {}, "là": {}, "được": {}, "trong": {}, "các": {}, "để": {}, "cho": {},
	"với": {}, "theo": {}, "từ": {}, "về": {}, "này": {}, "đó": {}, "khi": {}, "như": {}, "không": {},
	"tại": {}, "hoặc": {}, "những": {}, "đã": {}, "vào": {}, "nếu": {}, "hay": {}, "do": {}, "sẽ": {},
	"bởi": {}, "bằng": {}, "đến": {}, "trên": {}, "dưới": {}, "sau": {}, "trước": {}, "ngoài": {},
	"giữa": {}, "thì": {}, "nhưng": {}, "mà": {}, "vì": {}, "nên": {}, "đây": {}, "đấy": {}, "cũng": {},
	"thêm": {}, "nhiều": {}, "ít": {},
}

// nonAlphanumeric matches any rune that isn't a Unicode letter or digit, so
// that Vietnamese diacritics survive lowercasing and splitting.
var nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokenize lowercases text, replaces every non-alphanumeric character with
// a space, splits on whitespace, keeps tokens of length >= 2, and (if
// dropStopwords) removes tokens in Stopwords. Empty input yields nil; other
// input yields a non-nil, possibly empty, slice.
func Tokenize(text string, dropStopwords bool) []string {
	if text == "" {
		return nil
	}
	cleaned := nonAlphanumeric.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if dropStopwords {
			if _, stop := Stopwords[f]; stop {
				continue
			}
		}
		tokens = append(tokens, f)
	}
	return tokens
}
