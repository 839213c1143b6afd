package fusion

import (
	"go.uber.org/zap"

	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/numeric"
	"github.com/sells-group/kpi-cli/internal/units"
)

// Normalize parses the raw value, resolves the unit against the KPI's
// canonical units and rescores the candidate. It reports false when the raw
// value holds no number; such candidates are discarded.
func Normalize(c model.Candidate, kpi model.KPIDef, cm ConfidenceModel) (model.Candidate, bool) {
	v, ok := numeric.Parse(c.RawValue)
	if !ok {
		zap.L().Debug("fusion: discarding unparseable candidate",
			zap.String("kpi", c.KPICode),
			zap.String("source", string(c.Source)),
			zap.String("raw_value", c.RawValue),
		)
		return c, false
	}

	res := units.Resolve(c.RawUnit, kpi.Units)
	n := c.WithNormalized(v*res.Multiplier, res.Unit)
	if cm == nil {
		cm = Fixed{}
	}
	return n.WithConfidence(cm.Score(n, kpi)), true
}
