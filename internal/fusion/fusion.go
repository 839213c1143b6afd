// Package fusion reconciles extractor candidates into one result per KPI.
package fusion

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/kpi-cli/internal/model"
)

// State is the per-KPI fusion state.
type State int

const (
	StateNoCandidate State = iota
	StateHasCandidates
	StateResolved
	StateUnresolved
)

func (s State) String() string {
	switch s {
	case StateNoCandidate:
		return "no_candidate"
	case StateHasCandidates:
		return "has_candidates"
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// contradictionMinConfidence is the confidence both candidates need before a
// disagreement between them is logged.
const contradictionMinConfidence = 0.5

// Fuser holds the fusion state for one document run. It is not safe for
// concurrent use.
type Fuser struct {
	schema     *model.Schema
	states     map[string]State
	candidates map[string][]model.Candidate
	results    map[string]model.KPIResult
}

// New creates a Fuser with every schema KPI in StateNoCandidate.
func New(schema *model.Schema) *Fuser {
	f := &Fuser{
		schema:     schema,
		states:     make(map[string]State, schema.Len()),
		candidates: make(map[string][]model.Candidate, schema.Len()),
		results:    make(map[string]model.KPIResult, schema.Len()),
	}
	for _, code := range schema.Codes() {
		f.states[code] = StateNoCandidate
	}
	return f
}

// Add records a normalized deterministic candidate. Candidates without a
// value, for unknown KPIs, from the LLM, or arriving after Resolve are
// ignored.
func (f *Fuser) Add(c model.Candidate) bool {
	state, known := f.states[c.KPICode]
	if !known || !c.Valid() || !c.Source.Deterministic() {
		return false
	}
	if state != StateNoCandidate && state != StateHasCandidates {
		return false
	}
	f.states[c.KPICode] = StateHasCandidates
	f.candidates[c.KPICode] = append(f.candidates[c.KPICode], c)
	return true
}

// Resolve selects the winner for every KPI with candidates and marks the
// rest unresolved. Selection is by confidence, then source priority.
func (f *Fuser) Resolve() {
	for _, code := range f.schema.Codes() {
		switch f.states[code] {
		case StateHasCandidates:
			best := selectBest(f.candidates[code])
			f.results[code] = model.ResultFromCandidate(best)
			f.states[code] = StateResolved
		case StateNoCandidate:
			f.states[code] = StateUnresolved
		}
	}
}

// Unresolved returns the codes still without a value, in schema order.
func (f *Fuser) Unresolved() []string {
	var out []string
	for _, code := range f.schema.Codes() {
		if f.states[code] == StateUnresolved {
			out = append(out, code)
		}
	}
	return out
}

// Backfill accepts an LLM candidate only when its KPI is still unresolved.
// A resolved KPI is never overwritten.
func (f *Fuser) Backfill(c model.Candidate) bool {
	if f.states[c.KPICode] != StateUnresolved || !c.Valid() {
		return false
	}
	f.results[c.KPICode] = model.ResultFromCandidate(c)
	f.states[c.KPICode] = StateResolved
	return true
}

// State returns the current state of code.
func (f *Fuser) State(code string) State {
	return f.states[code]
}

// Results returns one result per schema KPI in schema order. KPIs without a
// winner are reported as not reported.
func (f *Fuser) Results() []model.KPIResult {
	out := make([]model.KPIResult, 0, f.schema.Len())
	for _, code := range f.schema.Codes() {
		if r, ok := f.results[code]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, model.UnresolvedResult(code))
	}
	return out
}

// Fuse runs a complete deterministic fusion over normalized candidates.
func Fuse(schema *model.Schema, candidates []model.Candidate) []model.KPIResult {
	f := New(schema)
	for _, c := range candidates {
		f.Add(c)
	}
	f.Resolve()
	return f.Results()
}

func selectBest(cands []model.Candidate) model.Candidate {
	sorted := append([]model.Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].Source.Priority() > sorted[j].Source.Priority()
	})

	best := sorted[0]
	for _, other := range sorted[1:] {
		if contradicts(best, other) {
			zap.L().Warn("fusion: contradicting candidates",
				zap.String("kpi", best.KPICode),
				zap.String("winner_source", string(best.Source)),
				zap.Float64("winner_value", *best.Value),
				zap.String("other_source", string(other.Source)),
				zap.Float64("other_value", *other.Value),
			)
		}
	}
	return best
}

// contradicts reports whether two confident candidates disagree by more
// than 1%.
func contradicts(a, b model.Candidate) bool {
	if a.Confidence < contradictionMinConfidence || b.Confidence < contradictionMinConfidence {
		return false
	}
	if a.Unit != b.Unit {
		return true
	}
	denom := math.Max(math.Abs(*a.Value), math.Abs(*b.Value))
	if denom == 0 {
		return false
	}
	return math.Abs(*a.Value-*b.Value)/denom > 0.01
}
