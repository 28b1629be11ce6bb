// Package similarity scores how alike two pieces of text are, either
// pairwise by character sequence or across a corpus with TF-IDF vectors.
package similarity

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the SequenceMatcher ratio of a and b after lowercasing and
// trimming, in [0, 1]. Equal strings score 1.0. The arguments are ordered
// before matching because the junk heuristic is sensitive to which side is
// indexed.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1.0
	}
	if b < a {
		a, b = b, a
	}
	m := difflib.NewMatcher(splitChars(a), splitChars(b))
	return m.Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
