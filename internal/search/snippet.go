package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultWindowSize = 400
	ellipsis          = "..."
)

// Extract returns one snippet per query keyword found in text, in keyword
// order. Each snippet is a window of windowSize runes around the keyword's
// first case-insensitive occurrence, marked with "..." on any side that does
// not reach the text boundary. Overlapping windows are kept as they are, and
// a window narrower than the keyword may cut it short. When
// no keyword occurs, the first windowSize runes are returned instead, so the
// result is never empty.
func Extract(text, query string, windowSize int) []string {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	runes := []rune(text)
	lower := lowerRunes(runes)

	snippets := make([]string, 0, 2)
	for _, kw := range strings.Fields(query) {
		idx := runeIndex(lower, string(lowerRunes([]rune(kw))))
		if idx < 0 {
			continue
		}
		start := idx - windowSize/2
		if start < 0 {
			start = 0
		}
		end := start + windowSize
		if end > len(runes) {
			end = len(runes)
		}
		var b strings.Builder
		if start > 0 {
			b.WriteString(ellipsis)
		}
		b.WriteString(string(runes[start:end]))
		if end < len(runes) {
			b.WriteString(ellipsis)
		}
		snippets = append(snippets, b.String())
	}
	if len(snippets) > 0 {
		return snippets
	}

	if len(runes) > windowSize {
		return []string{string(runes[:windowSize]) + ellipsis}
	}
	return []string{text}
}

// lowerRunes lowercases rune by rune so positions line up with the original.
func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runeIndex(haystack []rune, needle string) int {
	s := string(haystack)
	i := strings.Index(s, needle)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
