package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-cli/internal/model"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, []string{"total_ghg_emissions", "energy_consumption", "water_withdrawal"}, s.Codes())

	ghg, ok := s.Get("total_ghg_emissions")
	require.True(t, ok)
	assert.Equal(t, "tCO2e", ghg.BaseUnit())
	assert.Contains(t, ghg.Synonyms, "total ghg emissions")

	energy, _ := s.Get("energy_consumption")
	assert.Equal(t, "MWh", energy.BaseUnit())
	water, _ := s.Get("water_withdrawal")
	assert.Equal(t, "m3", water.BaseUnit())
}

func TestParse_PreservesOrder(t *testing.T) {
	s, err := Parse([]byte(`
kpis:
  zeta_metric:
    units: [t]
  alpha_metric:
    units: [MWh, kWh]
    synonyms: [" alpha "]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta_metric", "alpha_metric"}, s.Codes())

	a, _ := s.Get("alpha_metric")
	assert.Equal(t, []string{"MWh", "kWh"}, a.Units)
	assert.Equal(t, []string{"alpha"}, a.Synonyms)
}

func TestParse_BareMappingAndJSON(t *testing.T) {
	s, err := Parse([]byte(`{"water_withdrawal": {"units": ["m3"], "synonyms": ["water withdrawal"]}, "headcount": {"units": []}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"water_withdrawal", "headcount"}, s.Codes())
	h, _ := s.Get("headcount")
	assert.Empty(t, h.Units)
	assert.Equal(t, "", h.BaseUnit())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty document"},
		{"list root", `- a`, "root must be a mapping"},
		{"kpis not mapping", `kpis: [a, b]`, "kpis must be a mapping"},
		{"no kpis", `kpis: {}`, "no KPIs defined"},
		{"bad code", `"Bad Code": {units: [t]}`, "invalid KPI code"},
		{"dup unit", `x: {units: [m3, "m³"]}`, "duplicate unit"},
		{"empty unit", `x: {units: [" "]}`, "empty unit"},
		{"empty synonym", `x: {units: [t], synonyms: [""]}`, "empty synonym"},
		{"bad entry", `x: [1, 2]`, "decode"},
		{"bad yaml", "x: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kpis:\n  scope_1:\n    units: [tCO2e]\n"), 0o644))
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"scope_1"}, s.Codes())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema: read")
}

func TestMarshal_RoundTrip(t *testing.T) {
	in := model.NewSchema([]model.KPIDef{
		{Code: "b_metric", Label: "B", Units: []string{"t", "kt"}, Synonyms: []string{"bee"}},
		{Code: "a_metric", Units: []string{"m3"}},
	})
	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kpis:")

	out, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, in.Codes(), out.Codes())
	b, _ := out.Get("b_metric")
	assert.Equal(t, "B", b.Label)
	assert.Equal(t, []string{"t", "kt"}, b.Units)
}
