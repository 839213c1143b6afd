package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/numeric"
)

var sentenceBreakRe = regexp.MustCompile(`[.!?]\s+|\n+`)

// SentenceWindow looks for a KPI synonym and reads the value from the
// matched sentence and the one after it.
type SentenceWindow struct {
	Confidence         float64
	FallbackConfidence float64
	Grammars           *GrammarCache
}

// Source implements Extractor.
func (s *SentenceWindow) Source() model.Source { return model.SourceSentence }

// Extract implements Extractor. Scanning continues past a synonym hit whose
// window yields nothing, so the first acceptable window wins.
func (s *SentenceWindow) Extract(doc *model.Document, schema *model.Schema) []model.Candidate {
	sentences := SplitSentences(doc.Text)
	if len(sentences) == 0 {
		return nil
	}
	normalized := make([]string, len(sentences))
	for i, sent := range sentences {
		normalized[i] = NormalizeLabel(sent)
	}

	cache := s.Grammars
	if cache == nil {
		cache = DefaultGrammarCache()
	}

	var out []model.Candidate
	for _, kpi := range schema.KPIs {
		g := cache.Get(kpi.Units)
		if g == nil {
			continue
		}
		terms := normalizedTerms(kpi.SearchTerms())
		for i := range sentences {
			if !matchesAny(normalized[i], terms) {
				continue
			}
			window := sentences[i]
			if i+1 < len(sentences) {
				window += " " + sentences[i+1]
			}
			if c, ok := s.fromWindow(kpi, g, window); ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (s *SentenceWindow) fromWindow(kpi model.KPIDef, g *Grammar, window string) (model.Candidate, bool) {
	if m, ok := g.Find(window); ok {
		return model.NewCandidate(kpi.Code, model.SourceSentence, m.Value, m.Unit, s.Confidence), true
	}

	unit, ok := g.FindUnit(window)
	if !ok {
		return model.Candidate{}, false
	}
	for _, raw := range BareNumbers(window) {
		v, ok := numeric.Parse(raw)
		if !ok || plausibleYear(v) || v < 100 {
			continue
		}
		return model.NewCandidate(kpi.Code, model.SourceSentence, raw, unit, s.FallbackConfidence), true
	}
	return model.Candidate{}, false
}

// SplitSentences splits text on sentence punctuation followed by whitespace
// and on newlines. The punctuation stays with its sentence.
func SplitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceBreakRe.FindAllStringIndex(text, -1) {
		end := loc[0]
		if text[loc[0]] != '\n' {
			end++
		}
		if sent := strings.TrimSpace(text[last:end]); sent != "" {
			out = append(out, sent)
		}
		last = loc[1]
	}
	if sent := strings.TrimSpace(text[last:]); sent != "" {
		out = append(out, sent)
	}
	return out
}

func matchesAny(haystack string, terms []string) bool {
	for _, t := range terms {
		if containsTerm(haystack, t) {
			return true
		}
	}
	return false
}

func plausibleYear(v float64) bool {
	return v >= 1000 && v <= 2100
}
