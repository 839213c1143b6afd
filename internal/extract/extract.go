// Package extract implements the deterministic KPI extractors: table grids,
// table-like text lines, value/unit patterns and sentence windows.
package extract

import (
	"github.com/sells-group/kpi-cli/internal/model"
)

// Extractor produces at most one candidate per KPI from a document.
// Implementations are pure functions of their input.
type Extractor interface {
	Source() model.Source
	Extract(doc *model.Document, schema *model.Schema) []model.Candidate
}

// Confidences holds the fixed confidence assigned by each extractor.
type Confidences struct {
	TableGrid        float64 `yaml:"table_grid" mapstructure:"table_grid"`
	TableText        float64 `yaml:"table_text" mapstructure:"table_text"`
	Pattern          float64 `yaml:"pattern" mapstructure:"pattern"`
	Sentence         float64 `yaml:"sentence" mapstructure:"sentence"`
	SentenceFallback float64 `yaml:"sentence_fallback" mapstructure:"sentence_fallback"`
}

// DefaultConfidences returns the standard per-source confidences.
func DefaultConfidences() Confidences {
	return Confidences{
		TableGrid:        0.9,
		TableText:        0.85,
		Pattern:          0.6,
		Sentence:         0.6,
		SentenceFallback: 0.4,
	}
}

// Deterministic returns the four local extractors in source-priority order,
// sharing the given grammar cache.
func Deterministic(conf Confidences, cache *GrammarCache) []Extractor {
	if cache == nil {
		cache = DefaultGrammarCache()
	}
	return []Extractor{
		&TableGrid{Confidence: conf.TableGrid},
		&TableText{Confidence: conf.TableText, Grammars: cache},
		&Pattern{Confidence: conf.Pattern, Grammars: cache},
		&SentenceWindow{Confidence: conf.Sentence, FallbackConfidence: conf.SentenceFallback, Grammars: cache},
	}
}
