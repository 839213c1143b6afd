package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnumRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// NormalizeLabel lowercases s, strips diacritics and collapses every run of
// non-alphanumeric characters into a single space.
func NormalizeLabel(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(folded, " "))
}

// CollapseWhitespace folds every whitespace run, including non-breaking
// spaces, into a single ASCII space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// containsTerm reports whether the normalized haystack contains the
// normalized term, either as a token-bounded substring or with every term
// token present somewhere in the haystack.
func containsTerm(haystack, term string) bool {
	if term == "" || haystack == "" {
		return false
	}
	if strings.Contains(" "+haystack+" ", " "+term+" ") {
		return true
	}
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(haystack) {
		tokens[tok] = true
	}
	for _, tok := range strings.Fields(term) {
		if !tokens[tok] {
			return false
		}
	}
	return true
}

// normalizedTerms returns the normalized search terms of a KPI.
func normalizedTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		n := NormalizeLabel(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
