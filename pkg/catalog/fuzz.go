package catalog

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases a name, strips accents and collapses whitespace so
// scoring is insensitive to case and diacritics.
func Normalize(name string) string {
	name = strings.ToLower(name)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	return strings.Join(strings.Fields(name), " ")
}

// Ratio scores the similarity of two strings on a 0-100 scale using
// normalized Levenshtein distance: ((len(a)+len(b)) - 2*dist adjustments)
// expressed as the classic ratio ((total - distance) / total).
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	dist := levenshtein(ra, rb)
	return (total - 2*dist) * 100 / total
}

// TokenSortRatio scores two strings after sorting their tokens, making
// the comparison insensitive to word order ("Madrid Real" vs "Real
// Madrid").
func TokenSortRatio(a, b string) int {
	return Ratio(sortTokens(a), sortTokens(b))
}

// PartialRatio scores the best alignment of the shorter string against
// equal-length windows of the longer one, so "champions" scores 100
// against "uefa champions league".
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}

	best := 0
	for start := 0; start+len(ra) <= len(rb); start++ {
		window := rb[start : start+len(ra)]
		if score := Ratio(string(ra), string(window)); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// Score combines full-string and token-sorted similarity; this is the
// scorer used for catalog resolution.
func Score(query, candidate string) int {
	full := Ratio(query, candidate)
	sorted := TokenSortRatio(query, candidate)
	if sorted > full {
		return sorted
	}
	return full
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
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
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
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
