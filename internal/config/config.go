package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Backfill  BackfillConfig  `yaml:"backfill" mapstructure:"backfill"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Reader    ReaderConfig    `yaml:"reader" mapstructure:"reader"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run store. An empty driver disables persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BackfillConfig configures the LLM backfill step.
type BackfillConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	MaxTextChars            int     `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	MaxRetries              int     `yaml:"max_retries" mapstructure:"max_retries"`
	TransientRetries        int     `yaml:"transient_retries" mapstructure:"transient_retries"`
	TimeoutSecs             int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond       float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	RetryBackoffMs          int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	Confidence              float64 `yaml:"confidence" mapstructure:"confidence"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// ExtractConfig configures the deterministic extractors.
type ExtractConfig struct {
	ConfidenceModel string            `yaml:"confidence_model" mapstructure:"confidence_model"`
	Confidences     ConfidencesConfig `yaml:"confidences" mapstructure:"confidences"`
}

// ConfidencesConfig holds the fixed confidence of each extractor.
type ConfidencesConfig struct {
	TableGrid        float64 `yaml:"table_grid" mapstructure:"table_grid"`
	TableText        float64 `yaml:"table_text" mapstructure:"table_text"`
	Pattern          float64 `yaml:"pattern" mapstructure:"pattern"`
	Sentence         float64 `yaml:"sentence" mapstructure:"sentence"`
	SentenceFallback float64 `yaml:"sentence_fallback" mapstructure:"sentence_fallback"`
}

// SchemaConfig selects the KPI schema. An empty path uses the built-in one.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ReaderConfig configures document readers.
type ReaderConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings a command mode needs. Mode is one of
// "extract", "batch", "serve" or "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract", "batch":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "runs":
		if c.Store.Driver == "" {
			errs = append(errs, "store.driver is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if c.Backfill.Enabled {
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when backfill is enabled")
		}
		if c.Backfill.MaxTextChars <= 0 {
			errs = append(errs, "backfill.max_text_chars must be > 0")
		}
		if c.Backfill.MaxRetries < 0 || c.Backfill.TransientRetries < 0 {
			errs = append(errs, "backfill retries must be >= 0")
		}
		if c.Backfill.TimeoutSecs <= 0 {
			errs = append(errs, "backfill.timeout_secs must be > 0")
		}
		if !unit(c.Backfill.Confidence) {
			errs = append(errs, "backfill.confidence must be between 0 and 1")
		}
	}

	if mode == "batch" && (c.Batch.MaxConcurrentDocuments < 1 || c.Batch.MaxConcurrentDocuments > 64) {
		errs = append(errs, "batch.max_concurrent_documents must be between 1 and 64")
	}

	cf := c.Extract.Confidences
	for _, v := range []float64{cf.TableGrid, cf.TableText, cf.Pattern, cf.Sentence, cf.SentenceFallback} {
		if !unit(v) {
			errs = append(errs, "extract.confidences values must be between 0 and 1")
			break
		}
	}
	switch c.Extract.ConfidenceModel {
	case "", "fixed", "weighted":
	default:
		errs = append(errs, "extract.confidence_model must be fixed or weighted")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func unit(f float64) bool {
	return f >= 0 && f <= 1
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "kpi.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("backfill.enabled", true)
	v.SetDefault("backfill.max_text_chars", 40000)
	v.SetDefault("backfill.max_retries", 2)
	v.SetDefault("backfill.transient_retries", 2)
	v.SetDefault("backfill.timeout_secs", 60)
	v.SetDefault("backfill.requests_per_second", 2.0)
	v.SetDefault("backfill.retry_backoff_ms", 500)
	v.SetDefault("backfill.confidence", 0.75)
	v.SetDefault("backfill.circuit_failure_threshold", 5)
	v.SetDefault("backfill.circuit_reset_secs", 30)
	v.SetDefault("extract.confidence_model", "fixed")
	v.SetDefault("extract.confidences.table_grid", 0.9)
	v.SetDefault("extract.confidences.table_text", 0.85)
	v.SetDefault("extract.confidences.pattern", 0.6)
	v.SetDefault("extract.confidences.sentence", 0.6)
	v.SetDefault("extract.confidences.sentence_fallback", 0.4)
	v.SetDefault("schema.path", "")
	v.SetDefault("reader.pdftotext_path", "pdftotext")
	v.SetDefault("batch.max_concurrent_documents", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)
	// Reports are written to stdout; keep logs off it.
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
