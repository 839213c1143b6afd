package extract

import (
	"github.com/sells-group/kpi-cli/internal/model"
)

// Pattern finds value/unit pairs in the flowing document text.
type Pattern struct {
	Confidence float64
	Grammars   *GrammarCache
}

// Source implements Extractor.
func (p *Pattern) Source() model.Source { return model.SourcePattern }

// Extract implements Extractor. KPIs without units are skipped.
func (p *Pattern) Extract(doc *model.Document, schema *model.Schema) []model.Candidate {
	text := CollapseWhitespace(doc.Text)
	if text == "" {
		return nil
	}

	var out []model.Candidate
	for _, kpi := range schema.KPIs {
		g := p.grammars().Get(kpi.Units)
		if g == nil {
			continue
		}
		m, ok := g.Find(text)
		if !ok {
			continue
		}
		out = append(out, model.NewCandidate(kpi.Code, model.SourcePattern, m.Value, m.Unit, p.Confidence))
	}
	return out
}

func (p *Pattern) grammars() *GrammarCache {
	if p.Grammars == nil {
		return DefaultGrammarCache()
	}
	return p.Grammars
}
