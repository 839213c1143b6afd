// Package store persists extraction runs and their KPI results.
package store

import (
	"context"
	"strings"

	"github.com/sells-group/kpi-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	DocumentID string          `json:"document_id,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction runs.
type Store interface {
	CreateRun(ctx context.Context, documentID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FailRun(ctx context.Context, runID string, reason string) error
	// SaveReport stores the report and its per-KPI rows and marks the run complete.
	SaveReport(ctx context.Context, runID string, report *model.ExtractionReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// resultColumns are the kpi_results columns written per report.
var resultColumns = []string{"run_id", "code", "value", "unit", "confidence", "sources", "status"}

// resultRows flattens a report into kpi_results rows.
func resultRows(runID string, report *model.ExtractionReport) [][]any {
	rows := make([][]any, 0, len(report.Results))
	for _, r := range report.Results {
		rows = append(rows, []any{
			runID, r.Code, r.Value, r.Unit, r.Confidence, strings.Join(r.Source, ","), string(r.Status),
		})
	}
	return rows
}
