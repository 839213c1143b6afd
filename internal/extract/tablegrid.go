package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/numeric"
)

var (
	labelHeaderKeywords = []string{"kpi", "metric", "kennzahl", "indicateur", "indicator", "indicador"}
	unitHeaderKeywords  = []string{"unit", "units", "einheit", "unite", "unidad"}
	valueHeaderKeywords = []string{"value", "wert", "valeur", "valor"}

	yearHeaderRe = regexp.MustCompile(`^(?:19|20)\d{2}$`)
	parenUnitRe  = regexp.MustCompile(`\(([^()]+)\)`)
)

// TableGrid reads KPIs from row/column grids supplied by the document reader.
type TableGrid struct {
	Confidence float64
}

// Source implements Extractor.
func (t *TableGrid) Source() model.Source { return model.SourceTableGrid }

// Extract implements Extractor. Tables are scanned in page order and the
// first table that yields a KPI wins.
func (t *TableGrid) Extract(doc *model.Document, schema *model.Schema) []model.Candidate {
	found := make(map[string]bool)
	var out []model.Candidate
	for _, table := range doc.Tables() {
		for _, c := range t.extractTable(table, schema) {
			if found[c.KPICode] {
				continue
			}
			found[c.KPICode] = true
			out = append(out, c)
		}
	}
	return out
}

// columns identifies the label, unit and value columns of a table.
type columns struct {
	label, unit, value int
	header             bool
}

func detectColumns(header []string) columns {
	cols := columns{label: -1, unit: -1, value: -1}
	year := -1
	for i, cell := range header {
		norm := NormalizeLabel(cell)
		switch {
		case cols.label < 0 && hasKeyword(norm, labelHeaderKeywords):
			cols.label = i
		case cols.unit < 0 && hasKeyword(norm, unitHeaderKeywords):
			cols.unit = i
		case cols.value < 0 && hasKeyword(norm, valueHeaderKeywords):
			cols.value = i
		case year < 0 && yearHeaderRe.MatchString(strings.TrimSpace(cell)):
			year = i
		}
	}
	if cols.value < 0 {
		cols.value = year
	}
	cols.header = cols.label >= 0 || cols.unit >= 0 || cols.value >= 0

	width := len(header)
	if cols.label < 0 {
		cols.label = 0
	}
	if cols.value < 0 {
		if width > 2 {
			cols.value = 2
		} else {
			cols.value = width - 1
		}
	}
	if cols.unit < 0 && width > 2 && cols.label != 1 && cols.value != 1 {
		cols.unit = 1
	}
	return cols
}

func hasKeyword(norm string, keywords []string) bool {
	for _, tok := range strings.Fields(norm) {
		for _, kw := range keywords {
			if tok == kw {
				return true
			}
		}
	}
	return false
}

func (t *TableGrid) extractTable(table model.Table, schema *model.Schema) []model.Candidate {
	if len(table) == 0 {
		return nil
	}
	cols := detectColumns(table[0])
	rows := table
	if cols.header {
		rows = table[1:]
	}

	found := make(map[string]bool)
	var out []model.Candidate
	for _, row := range rows {
		label := cell(row, cols.label)
		normLabel := NormalizeLabel(label)
		if normLabel == "" {
			continue
		}
		for _, kpi := range schema.KPIs {
			if found[kpi.Code] || !matchesAny(normLabel, tableTerms(kpi.Code, kpi.Synonyms)) {
				continue
			}
			raw := cell(row, cols.value)
			if _, ok := numeric.ParseLocale(raw); !ok {
				continue
			}
			found[kpi.Code] = true
			out = append(out, model.NewCandidate(kpi.Code, model.SourceTableGrid, raw, rowUnit(row, cols, label, kpi), t.Confidence))
		}
	}
	return out
}

// rowUnit picks the unit cell, then a parenthesized unit in the label, then
// the KPI's only unit. A unit cell that starts with a digit or parses as a
// number is a misplaced value; digits inside a unit such as tCO2e are fine.
func rowUnit(row []string, cols columns, label string, kpi model.KPIDef) string {
	if u := cell(row, cols.unit); u != "" && cols.unit != cols.value && !misplacedValue(u) {
		return u
	}
	if m := parenUnitRe.FindStringSubmatch(label); m != nil {
		return strings.TrimSpace(m[1])
	}
	if len(kpi.Units) == 1 {
		return kpi.Units[0]
	}
	return ""
}

func misplacedValue(u string) bool {
	if r, _ := utf8.DecodeRuneInString(u); unicode.IsDigit(r) {
		return true
	}
	_, ok := numeric.ParseLocale(u)
	return ok
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
