// Package tokencount provides the approximate tokenizer the chunkers use to
// enforce the chunk-size thresholds' token_count bound. The tokenizer
// family is deliberately left unspecified, so this is a
// word-boundary-snapping character estimate rather than a model-specific
// BPE vocabulary — the latter would need a 50k+ entry table the repo has no
// home for, and exact cross-tokenizer compatibility isn't required.
package tokencount

import "unicode"

// approxCharsPerToken mirrors the ~4 chars/token rule of thumb used by
// chunker.go's estimateTokens (len(text)/4).
const approxCharsPerToken = 4

// Count estimates the number of tokens in s.
func Count(s string) int {
	if s == "" {
		return 0
	}
	n := len(s) / approxCharsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// TruncateToTokens returns the prefix of s that contains at most maxTokens
// tokens by this package's estimate, snapping to the nearest preceding word
// boundary; when no whitespace precedes the limit it cuts at the limit,
// mid-word.
func TruncateToTokens(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * approxCharsPerToken
	if limit >= len(s) {
		return s
	}
	cut := limit
	for cut > 0 && !unicode.IsSpace(rune(s[cut])) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return s[:cut]
}

// SuffixByTokens returns the suffix of s containing approximately
// overlapTokens tokens, used by the prose chunker to carry chunk_overlap
// tokens from the end of the previous chunk into the next one.
func SuffixByTokens(s string, overlapTokens int) string {
	if overlapTokens <= 0 || s == "" {
		return ""
	}
	limit := overlapTokens * approxCharsPerToken
	if limit >= len(s) {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !unicode.IsSpace(rune(s[start])) {
		start++
	}
	if start >= len(s) {
		start = len(s) - limit
	}
	return s[start:]
}
