// Package model defines the shared types for KPI extraction runs.
package model

import (
	"strings"
)

// KPIDef describes a single metric in the extraction schema.
// Units are ordered: the first entry is the base unit values are reported in.
type KPIDef struct {
	Code        string   `json:"code" yaml:"code"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Units       []string `json:"units" yaml:"units"`
	Synonyms    []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// BaseUnit returns the unit values are normalized to, or "" when the KPI is unitless.
func (k KPIDef) BaseUnit() string {
	if len(k.Units) == 0 {
		return ""
	}
	return k.Units[0]
}

// SearchTerms returns the synonyms used to locate the KPI in text. When the
// schema lists none, the code itself is used with underscores as spaces.
func (k KPIDef) SearchTerms() []string {
	if len(k.Synonyms) > 0 {
		return k.Synonyms
	}
	return []string{strings.ReplaceAll(k.Code, "_", " ")}
}

// Schema is an ordered, read-only collection of KPI definitions.
type Schema struct {
	KPIs   []KPIDef
	byCode map[string]int
}

// NewSchema indexes the given definitions. Later duplicates of a code are ignored.
func NewSchema(kpis []KPIDef) *Schema {
	s := &Schema{byCode: make(map[string]int, len(kpis))}
	for _, k := range kpis {
		if _, dup := s.byCode[k.Code]; dup {
			continue
		}
		s.byCode[k.Code] = len(s.KPIs)
		s.KPIs = append(s.KPIs, k)
	}
	return s
}

// Get returns the definition for code.
func (s *Schema) Get(code string) (KPIDef, bool) {
	i, ok := s.byCode[code]
	if !ok {
		return KPIDef{}, false
	}
	return s.KPIs[i], true
}

// Codes returns the KPI codes in schema order.
func (s *Schema) Codes() []string {
	codes := make([]string, len(s.KPIs))
	for i, k := range s.KPIs {
		codes[i] = k.Code
	}
	return codes
}

// Len returns the number of KPIs.
func (s *Schema) Len() int {
	return len(s.KPIs)
}

// Subset returns a schema restricted to codes, preserving schema order.
// Unknown codes are skipped.
func (s *Schema) Subset(codes []string) *Schema {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var kpis []KPIDef
	for _, k := range s.KPIs {
		if want[k.Code] {
			kpis = append(kpis, k)
		}
	}
	return NewSchema(kpis)
}
