package query

import (
	"strings"
	"unicode"
)

const maxEntities = 10

// stopwords are dropped from candidate entities before the cap is applied.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "of": true, "in": true, "on": true, "to": true, "for": true,
	"and": true, "or": true, "how": true, "what": true, "where": true,
	"when": true, "why": true, "does": true, "do": true, "with": true,
	"this": true, "that": true, "it": true, "its": true, "be": true,
}

// extractEntities applies token heuristics -- CamelCase spans, snake_case
// identifiers, ALL_CAPS, and capitalized words -- to produce a
// deduplicated, stopword-filtered, capped candidate list.
func extractEntities(queryText string) []string {
	seen := map[string]bool{}
	var out []string

	add := func(token string) {
		token = strings.Trim(token, ".,!?:;()[]{}\"'")
		if token == "" {
			return
		}
		lower := strings.ToLower(token)
		if stopwords[lower] {
			return
		}
		if seen[token] {
			return
		}
		seen[token] = true
		out = append(out, token)
	}

	for _, field := range strings.Fields(queryText) {
		token := strings.Trim(field, ".,!?:;()[]{}\"'")
		if token == "" {
			continue
		}
		switch {
		case strings.Contains(token, "_"):
			add(token)
		case isAllCaps(token):
			add(token)
		case isCamelCase(token):
			add(token)
		case isCapitalized(token):
			add(token)
		}
		if len(out) >= maxEntities {
			break
		}
	}

	if len(out) > maxEntities {
		out = out[:maxEntities]
	}
	return out
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter && len(s) > 1
}

// isCamelCase reports a mixed-case identifier with at least one internal
// uppercase letter, e.g. "QueryEngine" or "embedQuery".
func isCamelCase(s string) bool {
	hasUpper, hasLower := false, false
	upperAfterLower := false
	prevLower := false
	for i, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
			if i > 0 && prevLower {
				upperAfterLower = true
			}
			prevLower = false
		} else if unicode.IsLower(r) {
			hasLower = true
			prevLower = true
		} else {
			prevLower = false
		}
	}
	return hasUpper && hasLower && upperAfterLower
}

func isCapitalized(s string) bool {
	r := []rune(s)
	if len(r) < 2 {
		return false
	}
	return unicode.IsUpper(r[0]) && allLower(r[1:])
}

func allLower(rs []rune) bool {
	for _, r := range rs {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
