package extract

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/sells-group/kpi-cli/internal/units"
)

// numberPattern matches a number token: space-grouped thousands or a digit
// followed by digits and separators, with an optional magnitude word.
const numberPattern = `(?:\d{1,3}(?:[ \x{00A0}\x{2007}\x{202F}]\d{3})+(?:[.,]\d+)?|\d[\d.,]*)(?:\s*(?:thousand|million|billion|k)\b)?`

const (
	leftBoundary  = `(?:^|[^\p{L}\p{N}.,])`
	rightBoundary = `(?:[^\p{L}\p{N}_]|$)`
)

var (
	bareNumberRe   = regexp.MustCompile(`(?i)` + leftBoundary + `(?P<num>` + numberPattern + `)`)
	leadingGroupRe = regexp.MustCompile(`^\d{1,3}[ \x{00A0}\x{2007}\x{202F}]\d{3}`)
	lastWordRe     = regexp.MustCompile(`(\p{L}+)[\s\p{Z}.:]*$`)
)

// ordinalWords label a small number that is not part of the value after it,
// as in "Scope 3 450 tCO2e".
var ordinalWords = map[string]bool{
	"scope": true, "category": true, "cat": true, "tier": true, "phase": true, "level": true,
	"step": true, "part": true, "section": true, "table": true, "figure": true, "page": true, "note": true,
}

// Match is a value/unit pair located in text.
type Match struct {
	Value string
	Unit  string
	Start int
	End   int
}

// Grammar holds the compiled value/unit patterns for one unit set. The
// variants are tried in order and the first one that matches wins.
type Grammar struct {
	variants []*regexp.Regexp
	unitRe   *regexp.Regexp
}

// newGrammar compiles the grammar for the normalized unit set.
func newGrammar(normUnits []string) *Grammar {
	alts := make([]string, len(normUnits))
	for i, u := range normUnits {
		alts[i] = unitPattern(u)
	}
	unit := `(?P<unit>` + strings.Join(alts, "|") + `)`
	num := `(?P<num>` + numberPattern + `)`

	return &Grammar{
		variants: []*regexp.Regexp{
			// 123,400 tCO2e
			regexp.MustCompile(`(?i)` + leftBoundary + num + `\s*` + unit + rightBoundary),
			// (tCO2e) of 123,400
			regexp.MustCompile(`(?i)\(\s*` + unit + `\s*\)[^0-9()]{0,40}?` + num),
			// tCO2e: 123,400
			regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + unit + `\s*[:=]?\s*` + num),
			// 123,400 in total (tCO2e)
			regexp.MustCompile(`(?i)` + leftBoundary + num + `[^0-9()]{0,40}?\(\s*` + unit + `\s*\)`),
		},
		unitRe: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + unit + rightBoundary),
	}
}

// unitPattern turns a normalized unit into a pattern that tolerates inner
// whitespace and superscript or subscript digits.
func unitPattern(u string) string {
	var b strings.Builder
	for i, r := range u {
		if i > 0 {
			b.WriteString(`\s?`)
		}
		switch r {
		case '3':
			b.WriteString(`[3\x{00B3}]`)
		case '2':
			b.WriteString(`[2\x{00B2}\x{2082}]`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// Find returns the first value/unit pair in text.
func (g *Grammar) Find(text string) (Match, bool) {
	for _, re := range g.variants {
		if m, ok := submatch(re, text); ok {
			return m, true
		}
	}
	return Match{}, false
}

// FindUnit returns the first unit occurrence in text as written.
func (g *Grammar) FindUnit(text string) (string, bool) {
	loc := g.unitRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false
	}
	i := g.unitRe.SubexpIndex("unit")
	return text[loc[2*i]:loc[2*i+1]], true
}

func submatch(re *regexp.Regexp, text string) (Match, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Match{}, false
	}
	m := Match{Start: loc[0], End: loc[1]}
	if i := re.SubexpIndex("num"); i >= 0 && loc[2*i] >= 0 {
		m.Value = dropOrdinal(text[:loc[2*i]], strings.TrimSpace(text[loc[2*i]:loc[2*i+1]]))
	}
	if i := re.SubexpIndex("unit"); i >= 0 && loc[2*i] >= 0 {
		m.Unit = text[loc[2*i]:loc[2*i+1]]
	}
	return m, m.Value != ""
}

// BareNumbers returns every number token in text, in order.
func BareNumbers(text string) []string {
	i := bareNumberRe.SubexpIndex("num")
	var out []string
	for _, loc := range bareNumberRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, dropOrdinal(text[:loc[2*i]], strings.TrimSpace(text[loc[2*i]:loc[2*i+1]])))
	}
	return out
}

// dropOrdinal removes the first space-separated group of num when the word
// before it is an ordinal label, so "Scope 3 450" reads as 450.
func dropOrdinal(before, num string) string {
	if !leadingGroupRe.MatchString(num) {
		return num
	}
	m := lastWordRe.FindStringSubmatch(before)
	if m == nil || !ordinalWords[strings.ToLower(m[1])] {
		return num
	}
	idx := strings.IndexFunc(num, unicode.IsSpace)
	if idx < 0 {
		return num
	}
	return strings.TrimSpace(num[idx:])
}

// GrammarCache memoizes compiled grammars by normalized unit set for the
// life of the process. Safe for concurrent use.
type GrammarCache struct {
	entries sync.Map
}

var defaultCache = &GrammarCache{}

// DefaultGrammarCache returns the process-wide grammar cache.
func DefaultGrammarCache() *GrammarCache {
	return defaultCache
}

// Get returns the grammar for a unit list, compiling it on first use.
// It returns nil when the list holds no usable unit.
func (c *GrammarCache) Get(unitList []string) *Grammar {
	key, normUnits := unitSetKey(unitList)
	if key == "" {
		return nil
	}
	if g, ok := c.entries.Load(key); ok {
		return g.(*Grammar)
	}
	g, _ := c.entries.LoadOrStore(key, newGrammar(normUnits))
	return g.(*Grammar)
}

// unitSetKey normalizes, deduplicates and sorts units longest first so that
// "tco2e" is tried before "t".
func unitSetKey(unitList []string) (string, []string) {
	seen := make(map[string]bool, len(unitList))
	var normUnits []string
	for _, u := range unitList {
		n := units.Normalize(u)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normUnits = append(normUnits, n)
	}
	sort.Slice(normUnits, func(i, j int) bool {
		if len(normUnits[i]) != len(normUnits[j]) {
			return len(normUnits[i]) > len(normUnits[j])
		}
		return normUnits[i] < normUnits[j]
	})
	return strings.Join(normUnits, "|"), normUnits
}
