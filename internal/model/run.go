package model

import "time"

// RunStatus represents the current state of an extraction run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusBackfill   RunStatus = "backfill"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run represents a single extraction run for a document.
type Run struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Status     RunStatus         `json:"status"`
	Report     *ExtractionReport `json:"report,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ExtractionReport is the complete output of one pipeline run.
type ExtractionReport struct {
	RunID             string      `json:"run_id,omitempty"`
	DocumentID        string      `json:"document_id"`
	Results           []KPIResult `json:"results"`
	Candidates        []Candidate `json:"candidates,omitempty"`
	BackfillRequested []string    `json:"backfill_requested,omitempty"`
	BackfillAccepted  []string    `json:"backfill_accepted,omitempty"`
	DurationMs        int64       `json:"duration_ms"`
}

// Reported returns the number of KPIs with a value.
func (r *ExtractionReport) Reported() int {
	n := 0
	for _, res := range r.Results {
		if res.Resolved() {
			n++
		}
	}
	return n
}

// Result returns the result for code.
func (r *ExtractionReport) Result(code string) (KPIResult, bool) {
	for _, res := range r.Results {
		if res.Code == code {
			return res, true
		}
	}
	return KPIResult{}, false
}
