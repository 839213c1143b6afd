package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-cli/internal/model"
)

func newSentenceWindow() *SentenceWindow {
	return &SentenceWindow{Confidence: 0.6, FallbackConfidence: 0.4, Grammars: &GrammarCache{}}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First one. Second one! Third?\nFourth\n\nFifth 123.400 t")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?", "Fourth", "Fifth 123.400 t"}, got)
	assert.Empty(t, SplitSentences("  \n "))
}

func TestSentenceWindow_NextSentence(t *testing.T) {
	doc := &model.Document{Text: "Our total energy consumption was high. It amounted to 45,000 MWh overall."}

	cands := newSentenceWindow().Extract(doc, testSchema())
	require.Len(t, cands, 1)
	c := cands[0]
	assert.Equal(t, "energy_consumption", c.KPICode)
	assert.Equal(t, "45,000", c.RawValue)
	assert.Equal(t, "MWh", c.RawUnit)
	assert.Equal(t, 0.6, c.Confidence)
	assert.Equal(t, model.SourceSentence, c.Source)
}

func TestSentenceWindow_WindowIsTwoSentences(t *testing.T) {
	doc := &model.Document{Text: "Energy consumption is discussed here. Nothing yet. Later we list 45,000 MWh."}
	assert.Empty(t, newSentenceWindow().Extract(doc, testSchema()))
}

func TestSentenceWindow_BareNumberFallback(t *testing.T) {
	doc := &model.Document{Text: "In 2023 energy consumption totalled 4,200 units, see the MWh table."}

	cands := newSentenceWindow().Extract(doc, testSchema())
	require.Len(t, cands, 1)
	assert.Equal(t, "4,200", cands[0].RawValue)
	assert.Equal(t, "MWh", cands[0].RawUnit)
	assert.Equal(t, 0.4, cands[0].Confidence)
}

func TestSentenceWindow_FallbackRejections(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"small value", "Energy consumption fell by 12 percent in MWh terms."},
		{"year only", "Energy consumption for 2022 is given in MWh."},
		{"no unit in window", "Energy consumption was 45,000 last year."},
		{"no synonym", "We used 45,000 units, see the MWh table."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, newSentenceWindow().Extract(&model.Document{Text: tt.text}, testSchema()))
		})
	}
}

func TestSentenceWindow_LaterHit(t *testing.T) {
	doc := &model.Document{Text: "Energy consumption is discussed below. Nothing here. Other text.\nEnergy consumption: 9,000 MWh."}

	cands := newSentenceWindow().Extract(doc, testSchema())
	require.Len(t, cands, 1)
	assert.Equal(t, "9,000", cands[0].RawValue)
}

func TestSentenceWindow_CodeAsSynonym(t *testing.T) {
	schema := model.NewSchema([]model.KPIDef{{Code: "water_withdrawal", Units: []string{"m3"}}})
	doc := &model.Document{Text: "Water withdrawal amounted to 3 400 m3 across all sites."}

	cands := newSentenceWindow().Extract(doc, schema)
	require.Len(t, cands, 1)
	assert.Equal(t, "3 400", cands[0].RawValue)
}
