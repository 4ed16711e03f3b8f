package knowledge

import (
	"strings"
	"unicode"
)

// NormalizeQuestion lower-cases q, keeps letters and digits and collapses
// every run of punctuation or whitespace into a single space. Two corpus
// questions with the same normalized form are duplicates.
func NormalizeQuestion(q string) string {
	lowered := strings.ToLower(strings.TrimSpace(q))
	var builder strings.Builder
	builder.Grow(len(lowered))
	lastSpace := true
	for _, r := range lowered {
		if r == 'ё' {
			r = 'е'
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			builder.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(builder.String())
}

// Words splits the normalized form of text into words.
func Words(text string) []string {
	return strings.Fields(NormalizeQuestion(text))
}
