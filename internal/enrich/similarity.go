// Package enrich implements the external enrichment loops that attach
// OpenAlex profiles, Semantic Scholar ids, and GitHub star credit to the
// author graph.
package enrich

import "strings"

// Match confidence bands recorded alongside OpenAlex matches.
const (
	// MinMatchSimilarity is the floor below which a position pairing is
	// rejected outright.
	MinMatchSimilarity = 0.75

	highConfidence   = 0.95
	mediumConfidence = 0.85
)

// confidenceBucket names the band a similarity falls into, for stats.
func confidenceBucket(sim float64) string {
	switch {
	case sim >= highConfidence:
		return "high"
	case sim >= mediumConfidence:
		return "medium"
	default:
		return "low"
	}
}

// NameSimilarity scores how likely two author name strings refer to the
// same person, in [0, 1]. Comparison is case-folded and
// whitespace-collapsed, and a "Last, First" form is also tried reversed
// so catalogue-style names match natural order.
func NameSimilarity(a, b string) float64 {
	a = foldName(a)
	b = foldName(b)
	if a == "" || b == "" {
		return 0
	}
	best := levenshteinRatio(a, b)
	if rev := reverseCommaName(b); rev != b {
		if r := levenshteinRatio(a, rev); r > best {
			best = r
		}
	}
	if rev := reverseCommaName(a); rev != a {
		if r := levenshteinRatio(rev, b); r > best {
			best = r
		}
	}
	return best
}

// foldName lowercases and collapses interior whitespace.
func foldName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// reverseCommaName turns "last, first" into "first last". Names without a
// comma come back unchanged.
func reverseCommaName(s string) string {
	last, first, found := strings.Cut(s, ",")
	if !found {
		return s
	}
	return strings.TrimSpace(first) + " " + strings.TrimSpace(last)
}

// levenshteinRatio is 1 - distance/maxLen over runes, so identical
// strings score 1 and disjoint strings approach 0.
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
