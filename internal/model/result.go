package model

// Status reports whether a KPI was found in the document.
type Status string

const (
	StatusReported    Status = "reported"
	StatusNotReported Status = "not reported"
)

// KPIResult is the fused outcome for one KPI in one document.
type KPIResult struct {
	Code       string   `json:"code"`
	Value      *float64 `json:"value"`
	Unit       *string  `json:"unit"`
	Confidence float64  `json:"confidence"`
	Source     []string `json:"source"`
	Status     Status   `json:"status"`
}

// UnresolvedResult is the result emitted for a KPI no source could fill.
func UnresolvedResult(code string) KPIResult {
	return KPIResult{
		Code:   code,
		Source: []string{},
		Status: StatusNotReported,
	}
}

// ResultFromCandidate converts the winning candidate into a result. An
// invalid candidate yields an unresolved result.
func ResultFromCandidate(c Candidate) KPIResult {
	if !c.Valid() {
		return UnresolvedResult(c.KPICode)
	}
	v := *c.Value
	r := KPIResult{
		Code:       c.KPICode,
		Value:      &v,
		Confidence: c.Confidence,
		Source:     []string{string(c.Source)},
		Status:     StatusReported,
	}
	if c.Unit != "" {
		u := c.Unit
		r.Unit = &u
	}
	return r
}

// Resolved reports whether the result carries a value.
func (r KPIResult) Resolved() bool {
	return r.Value != nil
}
