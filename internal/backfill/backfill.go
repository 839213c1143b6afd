// Package backfill asks a language-model oracle for KPIs that the
// deterministic extractors could not find.
package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/resilience"
)

// ErrMalformedResponse is returned when the oracle reply is not a JSON object.
var ErrMalformedResponse = eris.New("backfill: malformed oracle response")

// Config controls prompt size, retries and timeouts.
type Config struct {
	MaxTextChars int
	// MaxRetries is the number of extra attempts after a malformed response.
	MaxRetries int
	// TransientRetries is the number of extra attempts after a transient transport error.
	TransientRetries int
	Timeout          time.Duration
	Confidence       float64
	Retry            resilience.RetryConfig
	Circuit          resilience.CircuitBreakerConfig
}

// DefaultConfig returns the default backfill settings.
func DefaultConfig() Config {
	return Config{
		MaxTextChars:     40000,
		MaxRetries:       2,
		TransientRetries: 2,
		Timeout:          60 * time.Second,
		Confidence:       0.75,
		Retry:            resilience.DefaultRetryConfig(),
		Circuit:          resilience.DefaultCircuitBreakerConfig(),
	}
}

// Extractor produces llm candidates for unresolved KPIs. Safe for concurrent use.
type Extractor struct {
	oracle  Oracle
	cfg     Config
	breaker *resilience.CircuitBreaker
}

// New creates a backfill extractor over oracle.
func New(oracle Oracle, cfg Config) *Extractor {
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultConfig().MaxTextChars
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.TransientRetries < 0 {
		cfg.TransientRetries = 0
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = DefaultConfig().Confidence
	}
	cfg.Circuit.ShouldTrip = resilience.IsTransient
	cfg.Circuit.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("backfill: oracle circuit changed",
			zap.String("from", from.String()), zap.String("to", to.String()))
	}
	return &Extractor{oracle: oracle, cfg: cfg, breaker: resilience.NewCircuitBreaker(cfg.Circuit)}
}

// Backfill asks the oracle for every KPI in kpis and returns at most one
// candidate per KPI. Any failure yields no candidates.
func (e *Extractor) Backfill(ctx context.Context, text string, kpis *model.Schema) []model.Candidate {
	if e == nil || e.oracle == nil || kpis == nil || kpis.Len() == 0 {
		return nil
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	prompt := BuildPrompt(truncate(text, e.cfg.MaxTextChars), kpis.KPIs)

	log := zap.L().With(zap.Strings("kpis", kpis.Codes()))
	parseCfg := e.cfg.Retry
	parseCfg.MaxAttempts = e.cfg.MaxRetries + 1
	parseCfg.ShouldRetry = func(err error) bool { return errors.Is(err, ErrMalformedResponse) }
	parseCfg.OnRetry = resilience.RetryLogger("oracle", "parse")

	entries, err := resilience.DoVal(ctx, parseCfg, func(ctx context.Context) (map[string]entry, error) {
		raw, err := e.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return parseResponse(raw)
	})
	if err != nil {
		log.Warn("backfill: oracle unavailable", zap.Error(err))
		return nil
	}

	var out []model.Candidate
	for _, k := range kpis.KPIs {
		en, ok := entries[k.Code]
		if !ok || en.Value == "" {
			continue
		}
		out = append(out, model.NewCandidate(k.Code, model.SourceLLM, en.Value, en.Unit, e.cfg.Confidence))
	}
	log.Debug("backfill: oracle answered", zap.Int("candidates", len(out)))
	return out
}

// complete calls the oracle through the circuit breaker, retrying transient errors.
func (e *Extractor) complete(ctx context.Context, p Prompt) (string, error) {
	cfg := e.cfg.Retry
	cfg.MaxAttempts = e.cfg.TransientRetries + 1
	cfg.ShouldRetry = resilience.IsTransient
	cfg.OnRetry = resilience.RetryLogger("oracle", "complete")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (string, error) {
			return e.oracle.Complete(ctx, p)
		})
	})
}

type entry struct {
	Value string
	Unit  string
}

type rawEntry struct {
	RawValue any     `json:"raw_value"`
	RawUnit  *string `json:"raw_unit"`
}

// parseResponse decodes {code: {raw_value, raw_unit}}. Entries that are not
// objects are ignored; a root that is not an object is malformed.
func parseResponse(text string) (map[string]entry, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(text)), &root); err != nil || root == nil {
		zap.L().Debug("backfill: undecodable oracle reply", zap.String("reply", abbreviate(text, 200)))
		return nil, ErrMalformedResponse
	}

	out := make(map[string]entry, len(root))
	for code, msg := range root {
		var re rawEntry
		if err := json.Unmarshal(msg, &re); err != nil {
			continue
		}
		var en entry
		switch v := re.RawValue.(type) {
		case string:
			en.Value = strings.TrimSpace(v)
		case float64:
			en.Value = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if re.RawUnit != nil {
			en.Unit = strings.TrimSpace(*re.RawUnit)
		}
		out[code] = en
	}
	return out, nil
}

// cleanJSON strips markdown fences and surrounding prose from a model reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
