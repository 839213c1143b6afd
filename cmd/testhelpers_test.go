package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-cli/internal/config"
)

// useTestConfig installs a config with defaults, a temp sqlite store and
// backfill disabled.
func useTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "kpi.db")
	cfg.Anthropic.Model = "claude-haiku-4-5-20251001"
	cfg.Backfill.MaxTextChars = 40000
	cfg.Backfill.TimeoutSecs = 60
	cfg.Backfill.Confidence = 0.75
	cfg.Extract.ConfidenceModel = "fixed"
	cfg.Extract.Confidences = config.ConfidencesConfig{TableGrid: 0.9, TableText: 0.85, Pattern: 0.6, Sentence: 0.6, SentenceFallback: 0.4}
	cfg.Batch.MaxConcurrentDocuments = 2
	cfg.Server.Port = 8080
	cfg.Log = config.LogConfig{Level: "error", Format: "json"}
}

func newTestEnv(t *testing.T, persist bool) *pipelineEnv {
	t.Helper()
	useTestConfig(t)
	env, err := initPipeline(context.Background(), "extract", envOptions{Persist: persist})
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
