package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/kpi-cli/internal/model"
)

var (
	tableLikeRe   = regexp.MustCompile(`\||[ \t]{2,}|\([^()]+\)`)
	narrativeRe   = regexp.MustCompile(`(?i)\b(?:reported|announced|increased|decreased|reached|rose|fell)\b`)
	trailingNumRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?P<num>-?\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+(?:[.,]\d+)?|-?\d[\d.,]*)\s*$`)
)

// TableText reads KPIs from table rows that survived as plain text lines in
// the layout-preserving page text.
type TableText struct {
	Confidence float64
	Grammars   *GrammarCache
}

// Source implements Extractor.
func (t *TableText) Source() model.Source { return model.SourceTableText }

// Extract implements Extractor. Only page text is read; a document without
// pages yields nothing.
func (t *TableText) Extract(doc *model.Document, schema *model.Schema) []model.Candidate {
	cache := t.Grammars
	if cache == nil {
		cache = DefaultGrammarCache()
	}

	found := make(map[string]bool)
	var out []model.Candidate
	for _, page := range doc.Pages {
		for _, line := range strings.Split(page.Text, "\n") {
			if !isTableLine(line) {
				continue
			}
			norm := NormalizeLabel(line)
			for _, kpi := range schema.KPIs {
				if found[kpi.Code] || !matchesAny(norm, tableTerms(kpi.Code, kpi.Synonyms)) {
					continue
				}
				var unit string
				if g := cache.Get(kpi.Units); g != nil {
					unit, _ = g.FindUnit(line)
				}
				value, ok := trailingNumber(line, unit)
				if !ok {
					continue
				}
				found[kpi.Code] = true
				out = append(out, model.NewCandidate(kpi.Code, model.SourceTableText, value, unit, t.Confidence))
			}
		}
	}
	return out
}

func isTableLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return tableLikeRe.MatchString(line) && !narrativeRe.MatchString(line)
}

// trailingNumber returns the number that ends the line, ignoring trailing
// cell separators and a trailing unit column.
func trailingNumber(line, unit string) (string, bool) {
	line = strings.TrimRight(line, " \t|")
	if unit != "" && strings.HasSuffix(line, unit) {
		line = strings.TrimRight(strings.TrimSuffix(line, unit), " \t|")
	}
	loc := trailingNumRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return "", false
	}
	i := trailingNumRe.SubexpIndex("num")
	return strings.TrimSpace(line[loc[2*i]:loc[2*i+1]]), true
}
