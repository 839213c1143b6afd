package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-cli/internal/backfill"
	"github.com/sells-group/kpi-cli/internal/config"
	"github.com/sells-group/kpi-cli/internal/document"
	"github.com/sells-group/kpi-cli/internal/extract"
	"github.com/sells-group/kpi-cli/internal/fusion"
	"github.com/sells-group/kpi-cli/internal/metrics"
	"github.com/sells-group/kpi-cli/internal/model"
	"github.com/sells-group/kpi-cli/internal/pipeline"
	"github.com/sells-group/kpi-cli/internal/resilience"
	"github.com/sells-group/kpi-cli/internal/schema"
	"github.com/sells-group/kpi-cli/internal/store"
	anthropicpkg "github.com/sells-group/kpi-cli/pkg/anthropic"
)

// pipelineEnv holds the schema, store and pipeline needed by the
// extract/batch/serve commands.
type pipelineEnv struct {
	Schema   *model.Schema
	Pipeline *pipeline.Pipeline
	Store    store.Store // may be nil
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Reader   document.Reader
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// envOptions are per-command overrides of the loaded config.
type envOptions struct {
	SchemaPath string
	NoBackfill bool
	Persist    bool
}

// initPipeline validates the config for mode, loads the schema and builds
// the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string, opts envOptions) (*pipelineEnv, error) {
	if opts.NoBackfill {
		cfg.Backfill.Enabled = false
	}
	if cfg.Backfill.Enabled && cfg.Anthropic.Key == "" {
		zap.L().Warn("KPI_ANTHROPIC_KEY not set, LLM backfill disabled")
		cfg.Backfill.Enabled = false
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	schemaPath := cfg.Schema.Path
	if opts.SchemaPath != "" {
		schemaPath = opts.SchemaPath
	}
	kpis, err := schema.Load(schemaPath)
	if err != nil {
		return nil, err
	}

	cm, err := fusion.NewConfidenceModel(cfg.Extract.ConfidenceModel)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	pipeOpts := []pipeline.Option{
		pipeline.WithExtractors(extract.Deterministic(confidences(cfg.Extract.Confidences), extract.DefaultGrammarCache())...),
		pipeline.WithConfidenceModel(cm),
		pipeline.WithMetrics(m),
	}

	env := &pipelineEnv{
		Schema:   kpis,
		Metrics:  m,
		Registry: reg,
		Reader:   document.Auto{Options: document.Options{PdfToTextPath: cfg.Reader.PdfToTextPath}},
	}

	if opts.Persist && cfg.Store.Driver != "" {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
		pipeOpts = append(pipeOpts, pipeline.WithStore(st))
	}

	if cfg.Backfill.Enabled {
		oracle := backfill.NewAnthropicOracle(anthropicpkg.NewClient(cfg.Anthropic.Key), backfill.OracleConfig{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			RequestsPerSecond: cfg.Backfill.RequestsPerSecond,
		})
		pipeOpts = append(pipeOpts, pipeline.WithBackfiller(backfill.New(oracle, backfillConfig(cfg.Backfill))))
		zap.L().Info("llm backfill enabled", zap.String("model", cfg.Anthropic.Model))
	}

	env.Pipeline = pipeline.New(kpis, pipeOpts...)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "kpi.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func confidences(c config.ConfidencesConfig) extract.Confidences {
	return extract.Confidences{
		TableGrid:        c.TableGrid,
		TableText:        c.TableText,
		Pattern:          c.Pattern,
		Sentence:         c.Sentence,
		SentenceFallback: c.SentenceFallback,
	}
}

func backfillConfig(c config.BackfillConfig) backfill.Config {
	bc := backfill.DefaultConfig()
	bc.MaxTextChars = c.MaxTextChars
	bc.MaxRetries = c.MaxRetries
	bc.TransientRetries = c.TransientRetries
	bc.Timeout = time.Duration(c.TimeoutSecs) * time.Second
	bc.Confidence = c.Confidence
	bc.Retry = resilience.FromRetryConfig(0, c.RetryBackoffMs, 0)
	bc.Circuit = resilience.FromCircuitConfig(c.CircuitFailureThreshold, c.CircuitResetSecs)
	return bc
}
