package backfill

import (
	"fmt"
	"strings"

	"github.com/sells-group/kpi-cli/internal/model"
)

const systemPrompt = `You extract sustainability KPI values from corporate report text.

Return ONLY a JSON object with exactly one key per requested KPI code:
{"<kpi_code>": {"raw_value": string|null, "raw_unit": string|null}}

Rules:
- Report only the FIRST occurrence of each KPI in the text.
- Copy raw_value exactly as written (e.g. "123,400", "1.2 million").
- Copy raw_unit exactly as written (e.g. "tCO2e", "MWh", "m³").
- If a KPI is not in the text, use {"raw_value": null, "raw_unit": null}.
- Do not guess, convert or compute values.`

// BuildPrompt renders the oracle request for the given KPIs over text.
func BuildPrompt(text string, kpis []model.KPIDef) Prompt {
	var sb strings.Builder
	sb.WriteString("KPIs to extract:\n")
	for _, k := range kpis {
		fmt.Fprintf(&sb, "- %s", k.Code)
		if len(k.Units) > 0 {
			fmt.Fprintf(&sb, " (units: %s)", strings.Join(k.Units, ", "))
		}
		if len(k.Synonyms) > 0 {
			fmt.Fprintf(&sb, " (also called: %s)", strings.Join(k.Synonyms, "; "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nReport text:\n\"\"\"\n")
	sb.WriteString(text)
	sb.WriteString("\n\"\"\"")
	return Prompt{System: systemPrompt, User: sb.String()}
}

// truncate cuts text to at most limit runes.
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}
