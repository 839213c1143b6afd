package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-cli/internal/model"
)

func testSchema() *model.Schema {
	return model.NewSchema([]model.KPIDef{
		{Code: "total_ghg_emissions", Units: []string{"tCO2e"}, Synonyms: []string{"total ghg emissions", "greenhouse gas emissions"}},
		{Code: "energy_consumption", Units: []string{"MWh", "kWh", "GWh"}, Synonyms: []string{"energy consumption"}},
		{Code: "water_withdrawal", Units: []string{"m3"}, Synonyms: []string{"water withdrawal"}},
	})
}

func byCode(cands []model.Candidate) map[string]model.Candidate {
	out := make(map[string]model.Candidate, len(cands))
	for _, c := range cands {
		out[c.KPICode] = c
	}
	return out
}

func TestDeterministic(t *testing.T) {
	exts := Deterministic(DefaultConfidences(), nil)
	require.Len(t, exts, 4)
	assert.Equal(t, model.SourceTableGrid, exts[0].Source())
	assert.Equal(t, model.SourceTableText, exts[1].Source())
	assert.Equal(t, model.SourcePattern, exts[2].Source())
	assert.Equal(t, model.SourceSentence, exts[3].Source())
}

func TestPattern_ParenthesizedUnitBeforeValue(t *testing.T) {
	p := &Pattern{Confidence: 0.6, Grammars: &GrammarCache{}}
	doc := &model.Document{Text: "Total GHG emissions (tCO2e) of 123,400"}

	cands := p.Extract(doc, testSchema())
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, "total_ghg_emissions", c.KPICode)
	assert.Equal(t, "123,400", c.RawValue)
	assert.Equal(t, "tCO2e", c.RawUnit)
	assert.Equal(t, 0.6, c.Confidence)
	assert.Equal(t, model.SourcePattern, c.Source)
}

func TestPattern_ScopeNumberNotGroupedIntoValue(t *testing.T) {
	p := &Pattern{Confidence: 0.6, Grammars: &GrammarCache{}}
	doc := &model.Document{Text: "Total GHG emissions: Scope 3 450 tCO2e"}

	cands := p.Extract(doc, testSchema())
	require.Len(t, cands, 1)
	assert.Equal(t, "450", cands[0].RawValue)
	assert.Equal(t, "tCO2e", cands[0].RawUnit)
}

func TestPattern_MultipleKPIs(t *testing.T) {
	p := &Pattern{Confidence: 0.6, Grammars: &GrammarCache{}}
	doc := &model.Document{Text: "We used 45,000 MWh of energy and withdrew 1.2 million m³ of water."}

	got := byCode(p.Extract(doc, testSchema()))
	require.Len(t, got, 2)
	assert.Equal(t, "45,000", got["energy_consumption"].RawValue)
	assert.Equal(t, "MWh", got["energy_consumption"].RawUnit)
	assert.Equal(t, "1.2 million", got["water_withdrawal"].RawValue)
	assert.Equal(t, "m³", got["water_withdrawal"].RawUnit)
}

func TestPattern_SkipsUnitlessKPIs(t *testing.T) {
	p := &Pattern{Confidence: 0.6}
	schema := model.NewSchema([]model.KPIDef{{Code: "headcount"}})
	assert.Empty(t, p.Extract(&model.Document{Text: "We employ 5,000 people"}, schema))
	assert.Empty(t, p.Extract(&model.Document{}, testSchema()))
}

func TestPattern_Deterministic(t *testing.T) {
	p := &Pattern{Confidence: 0.6}
	doc := &model.Document{Text: "Scope totals: 10 tCO2e, then 20 tCO2e; energy 5 GWh."}
	first := p.Extract(doc, testSchema())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Extract(doc, testSchema()))
	}
	assert.Equal(t, "10", byCode(first)["total_ghg_emissions"].RawValue)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "prelevement total d eau", NormalizeLabel("Prélèvement total d'eau"))
	assert.Equal(t, "kpi metric", NormalizeLabel("  KPI / Metric "))
	assert.Equal(t, "total ghg emissions tco2e", NormalizeLabel("Total GHG emissions (tCO2e)"))
	assert.Equal(t, "", NormalizeLabel(" -- "))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace(" a   b\n\tc "))
}

func TestContainsTerm(t *testing.T) {
	assert.True(t, containsTerm("total ghg emissions tco2e", "total ghg emissions"))
	assert.True(t, containsTerm("emissions of ghg in total", "total ghg emissions"))
	assert.False(t, containsTerm("energy consumptions", "energy consumption"))
	assert.False(t, containsTerm("", "x"))
	assert.False(t, containsTerm("x", ""))
}
