package backfill

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/kpi-cli/pkg/anthropic"
)

// Prompt is a single oracle request.
type Prompt struct {
	System string
	User   string
}

// Oracle answers a prompt with raw model text.
type Oracle interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// OracleConfig configures AnthropicOracle.
type OracleConfig struct {
	Model             string
	MaxTokens         int64
	RequestsPerSecond float64
}

// AnthropicOracle is an Oracle backed by the Anthropic Messages API.
type AnthropicOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewAnthropicOracle creates an oracle. A non-positive RequestsPerSecond
// disables throttling.
func NewAnthropicOracle(client anthropic.Client, cfg OracleConfig) *AnthropicOracle {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &AnthropicOracle{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Complete sends the prompt at temperature 0 and returns the response text.
func (o *AnthropicOracle) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "backfill: rate limit wait")
	}

	temp := 0.0
	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		System:      []anthropic.SystemBlock{{Text: p.System, CacheControl: &anthropic.CacheControl{}}},
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(o.model, "backfill")
	return resp.Text(), nil
}
