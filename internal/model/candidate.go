package model

import "strings"

// Source identifies the extractor that produced a candidate.
type Source string

const (
	SourceTableGrid Source = "table_grid"
	SourceTableText Source = "table_text"
	SourcePattern   Source = "pattern"
	SourceSentence  Source = "sentence"
	SourceLLM       Source = "llm"
)

// Priority is the tie-break rank used when two candidates share a confidence.
// Higher wins. The LLM source ranks below every deterministic source.
func (s Source) Priority() int {
	switch s {
	case SourceTableGrid:
		return 4
	case SourceTableText:
		return 3
	case SourcePattern:
		return 2
	case SourceSentence:
		return 1
	default:
		return 0
	}
}

// Deterministic reports whether the source is a local extractor rather than the LLM.
func (s Source) Deterministic() bool {
	return s != SourceLLM && s.Priority() > 0
}

// Candidate is one extractor's observation of a KPI value. Candidates are
// values: normalization returns a new Candidate rather than mutating.
type Candidate struct {
	KPICode    string   `json:"kpi_code"`
	RawValue   string   `json:"raw_value"`
	RawUnit    string   `json:"raw_unit,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Confidence float64  `json:"confidence"`
	Source     Source   `json:"source"`
}

// NewCandidate builds a raw candidate. Raw text is trimmed and confidence is
// clamped to [0, 1].
func NewCandidate(code string, src Source, rawValue, rawUnit string, confidence float64) Candidate {
	return Candidate{
		KPICode:    code,
		RawValue:   strings.TrimSpace(rawValue),
		RawUnit:    strings.TrimSpace(rawUnit),
		Confidence: clamp01(confidence),
		Source:     src,
	}
}

// WithNormalized returns a copy carrying the parsed value and canonical unit.
func (c Candidate) WithNormalized(value float64, unit string) Candidate {
	v := value
	c.Value = &v
	c.Unit = unit
	return c
}

// WithConfidence returns a copy with the given confidence, clamped to [0, 1].
func (c Candidate) WithConfidence(confidence float64) Candidate {
	c.Confidence = clamp01(confidence)
	return c
}

// Valid reports whether the candidate carries a parsed value.
func (c Candidate) Valid() bool {
	return c.Value != nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
