package fusion

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-cli/internal/model"
)

// ConfidenceModel assigns the final confidence of a normalized candidate.
type ConfidenceModel interface {
	Name() string
	Score(c model.Candidate, kpi model.KPIDef) float64
}

// Fixed keeps the confidence the extractor assigned.
type Fixed struct{}

// Name implements ConfidenceModel.
func (Fixed) Name() string { return "fixed" }

// Score implements ConfidenceModel.
func (Fixed) Score(c model.Candidate, _ model.KPIDef) float64 {
	return c.Confidence
}

// QualityWeighted scales the extractor confidence by value and unit quality
// and a per-source prior, clamped to [0, 1].
type QualityWeighted struct {
	SourceWeights map[model.Source]float64
}

// DefaultSourceWeights are the priors used by QualityWeighted.
func DefaultSourceWeights() map[model.Source]float64 {
	return map[model.Source]float64{
		model.SourceTableGrid: 1.05,
		model.SourceTableText: 1.0,
		model.SourcePattern:   0.95,
		model.SourceSentence:  0.9,
		model.SourceLLM:       0.85,
	}
}

// Name implements ConfidenceModel.
func (QualityWeighted) Name() string { return "weighted" }

// Score implements ConfidenceModel.
func (q QualityWeighted) Score(c model.Candidate, kpi model.KPIDef) float64 {
	valueQuality := 0.0
	if c.Valid() {
		valueQuality = 1.0
	}

	unitQuality := 0.0
	switch {
	case c.Unit != "" && len(kpi.Units) > 0:
		for _, u := range kpi.Units {
			if u == c.Unit {
				unitQuality = 1.0
				break
			}
		}
	case c.Unit != "":
		unitQuality = 0.7
	case len(kpi.Units) == 0:
		unitQuality = 1.0
	}

	weights := q.SourceWeights
	if weights == nil {
		weights = DefaultSourceWeights()
	}
	weight, ok := weights[c.Source]
	if !ok {
		weight = 1.0
	}

	score := c.Confidence * (0.7*valueQuality + 0.3*unitQuality) * weight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// NewConfidenceModel returns the model registered under name.
func NewConfidenceModel(name string) (ConfidenceModel, error) {
	switch name {
	case "", "fixed":
		return Fixed{}, nil
	case "weighted":
		return QualityWeighted{SourceWeights: DefaultSourceWeights()}, nil
	default:
		return nil, eris.Errorf("fusion: unknown confidence model %q", name)
	}
}
