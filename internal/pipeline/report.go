package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/kpi-cli/internal/model"
)

// FormatReport renders a human-readable extraction report.
func FormatReport(r *model.ExtractionReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# KPI Report: %s\n", r.DocumentID)
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	}
	b.WriteString("\n## Summary\n")
	fmt.Fprintf(&b, "- Reported: %d of %d\n", r.Reported(), len(r.Results))
	fmt.Fprintf(&b, "- Candidates: %d\n", len(r.Candidates))
	if len(r.BackfillRequested) > 0 {
		fmt.Fprintf(&b, "- Backfill: %d requested, %d accepted\n", len(r.BackfillRequested), len(r.BackfillAccepted))
	}
	fmt.Fprintf(&b, "- Duration: %dms\n\n", r.DurationMs)

	b.WriteString("## Results\n")
	for _, res := range r.Results {
		if !res.Resolved() {
			fmt.Fprintf(&b, "- %s: %s\n", res.Code, res.Status)
			continue
		}
		unit := ""
		if res.Unit != nil {
			unit = " " + *res.Unit
		}
		fmt.Fprintf(&b, "- %s: %s%s (confidence %.2f, source %s)\n",
			res.Code,
			strconv.FormatFloat(*res.Value, 'f', -1, 64),
			unit,
			res.Confidence,
			strings.Join(res.Source, ", "),
		)
	}
	return b.String()
}
