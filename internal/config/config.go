package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/baseline-cli/internal/ingest"
	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/monitoring"
	"github.com/sells-group/baseline-cli/internal/oracle"
	"github.com/sells-group/baseline-cli/internal/pipeline"
	"github.com/sells-group/baseline-cli/internal/qa"
	"github.com/sells-group/baseline-cli/internal/reconcile"
	"github.com/sells-group/baseline-cli/internal/registry"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Oracle     OracleConfig      `yaml:"oracle" mapstructure:"oracle"`
	Schema     SchemaConfig      `yaml:"schema" mapstructure:"schema"`
	QA         qa.Config         `yaml:"qa" mapstructure:"qa"`
	Reconcile  reconcile.Config  `yaml:"reconcile" mapstructure:"reconcile"`
	Batch      BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Ingest     ingest.Options    `yaml:"ingest" mapstructure:"ingest"`
	Cost       CostConfig        `yaml:"cost" mapstructure:"cost"`
	Monitoring monitoring.Config `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API credentials.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OracleConfig configures when and how the classification oracle is asked.
type OracleConfig struct {
	oracle.Config `yaml:",inline" mapstructure:",squash"`

	MinFieldConfidence float64 `yaml:"min_field_confidence" mapstructure:"min_field_confidence"`
	MinFields          int     `yaml:"min_fields" mapstructure:"min_fields"`
}

// SchemaConfig configures mapping resolution and approval.
type SchemaConfig struct {
	registry.Config `yaml:",inline" mapstructure:",squash"`

	MinFinalConfidence  float64                     `yaml:"min_final_confidence" mapstructure:"min_final_confidence"`
	SampleSize          int                         `yaml:"sample_size" mapstructure:"sample_size"`
	KeywordsFile        string                      `yaml:"keywords_file" mapstructure:"keywords_file"`
	HeuristicValidation mapping.HeuristicValidation `yaml:"heuristic_validation" mapstructure:"heuristic_validation"`
	OracleValidation    mapping.OracleValidation    `yaml:"oracle_validation" mapstructure:"oracle_validation"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
}

// CostConfig points at the contracted rate card.
type CostConfig struct {
	RateCardFile string `yaml:"rate_card_file" mapstructure:"rate_card_file"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path looks for
// config.yaml in the working directory; a named file must exist.
func LoadFile(path string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("BASELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "baseline.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.key", "")

	oc := oracle.DefaultConfig()
	mo := mapping.DefaultOptions()
	v.SetDefault("oracle.enabled", oc.Enabled)
	v.SetDefault("oracle.model", oc.Model)
	v.SetDefault("oracle.max_tokens", oc.MaxTokens)
	v.SetDefault("oracle.timeout_secs", oc.TimeoutSecs)
	v.SetDefault("oracle.requests_per_second", oc.RequestsPerSecond)
	v.SetDefault("oracle.cache_ttl", oc.CacheTTL)
	v.SetDefault("oracle.resilience.max_attempts", oc.Resilience.MaxAttempts)
	v.SetDefault("oracle.resilience.initial_backoff_ms", oc.Resilience.InitialBackoffMs)
	v.SetDefault("oracle.resilience.max_backoff_ms", oc.Resilience.MaxBackoffMs)
	v.SetDefault("oracle.resilience.failure_threshold", oc.Resilience.FailureThreshold)
	v.SetDefault("oracle.resilience.reset_timeout_secs", oc.Resilience.ResetTimeoutSecs)
	v.SetDefault("oracle.min_field_confidence", mo.OracleMinFieldConfidence)
	v.SetDefault("oracle.min_fields", mo.OracleMinFields)

	rc := registry.DefaultConfig()
	v.SetDefault("schema.auto_learn", rc.AutoLearn)
	v.SetDefault("schema.require_manual_approval", rc.RequireManualApproval)
	v.SetDefault("schema.min_field_confidence", rc.MinFieldConfidence)
	v.SetDefault("schema.min_data_confidence", rc.MinDataConfidence)
	v.SetDefault("schema.auto_approve_field_confidence", rc.AutoApproveFieldConfidence)
	v.SetDefault("schema.auto_approve_data_confidence", rc.AutoApproveDataConfidence)
	v.SetDefault("schema.min_final_confidence", 0.60)
	v.SetDefault("schema.sample_size", mo.SampleSize)
	v.SetDefault("schema.keywords_file", "")
	v.SetDefault("schema.heuristic_validation.enabled", mo.Heuristic.Enabled)
	v.SetDefault("schema.heuristic_validation.min_type_confidence", mo.Heuristic.MinTypeConfidence)
	v.SetDefault("schema.heuristic_validation.min_date_parse", mo.Heuristic.MinDateParse)
	v.SetDefault("schema.heuristic_validation.min_numeric_rate", mo.Heuristic.MinNumericRate)
	v.SetDefault("schema.heuristic_validation.min_language_match", mo.Heuristic.MinLanguageMatch)
	v.SetDefault("schema.oracle_validation.enabled", mo.OracleValidation.Enabled)
	v.SetDefault("schema.oracle_validation.min_field_confidence", mo.OracleValidation.MinFieldConfidence)
	v.SetDefault("schema.oracle_validation.require_overall_ok", mo.OracleValidation.RequireOverallOK)
	v.SetDefault("schema.oracle_validation.min_overall_confidence", mo.OracleValidation.MinOverallConfidence)

	qc := qa.DefaultConfig()
	v.SetDefault("qa.rate_z_threshold", qc.RateZThreshold)
	v.SetDefault("qa.max_duration_minutes", qc.MaxDurationMinutes)
	v.SetDefault("qa.min_rate", qc.MinRate)
	v.SetDefault("qa.max_rate", qc.MaxRate)

	rec := reconcile.DefaultConfig()
	v.SetDefault("reconcile.phrases", rec.Phrases)
	v.SetDefault("reconcile.summary_sheet", rec.SummarySheet)
	v.SetDefault("reconcile.scan_window", rec.ScanWindow)
	v.SetDefault("reconcile.min_total", rec.MinTotal)
	v.SetDefault("reconcile.tolerance_pct", rec.TolerancePct)

	io := ingest.DefaultOptions()
	v.SetDefault("ingest.min_data_rows", io.MinDataRows)
	v.SetDefault("ingest.preview_rows", io.PreviewRows)
	v.SetDefault("ingest.min_sheet_score", io.MinSheetScore)

	v.SetDefault("batch.max_concurrent_files", 4)
	v.SetDefault("cost.rate_card_file", "")

	mc := monitoring.DefaultConfig()
	v.SetDefault("monitoring.min_success_rate", mc.MinSuccessRate)
	v.SetDefault("monitoring.min_samples", mc.MinSamples)
	v.SetDefault("monitoring.max_pending", mc.MaxPending)
	v.SetDefault("monitoring.lookback_hours", mc.LookbackHours)
	v.SetDefault("monitoring.max_run_failure_rate", mc.MaxRunFailureRate)
	v.SetDefault("monitoring.webhook_url", "")
}

// Validate checks ranges that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store.driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}
	if c.Batch.MaxConcurrentFiles < 1 || c.Batch.MaxConcurrentFiles > 64 {
		return eris.Errorf("config: batch.max_concurrent_files must be between 1 and 64, got %d", c.Batch.MaxConcurrentFiles)
	}
	thresholds := map[string]float64{
		"schema.min_field_confidence":          c.Schema.MinFieldConfidence,
		"schema.min_data_confidence":           c.Schema.MinDataConfidence,
		"schema.min_final_confidence":          c.Schema.MinFinalConfidence,
		"schema.auto_approve_field_confidence": c.Schema.AutoApproveFieldConfidence,
		"schema.auto_approve_data_confidence":  c.Schema.AutoApproveDataConfidence,
		"oracle.min_field_confidence":          c.Oracle.MinFieldConfidence,
	}
	for key, val := range thresholds {
		if val < 0 || val > 1 {
			return eris.Errorf("config: %s must be between 0 and 1, got %g", key, val)
		}
	}
	if c.QA.MinRate > c.QA.MaxRate {
		return eris.Errorf("config: qa.min_rate %g exceeds qa.max_rate %g", c.QA.MinRate, c.QA.MaxRate)
	}
	return nil
}

// ResolverOptions builds the mapping resolver options, loading the keyword
// override file when one is configured.
func (c *Config) ResolverOptions() (mapping.Options, error) {
	opts := mapping.DefaultOptions()
	kw, err := mapping.LoadKeywords(c.Schema.KeywordsFile)
	if err != nil {
		return opts, err
	}
	opts.Keywords = kw
	opts.SampleSize = c.Schema.SampleSize
	opts.OracleMinFieldConfidence = c.Oracle.MinFieldConfidence
	opts.OracleMinFields = c.Oracle.MinFields
	opts.Heuristic = c.Schema.HeuristicValidation
	opts.OracleValidation = c.Schema.OracleValidation
	return opts, nil
}

// PipelineConfig assembles the batch settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxConcurrentFiles: c.Batch.MaxConcurrentFiles,
		MinFinalConfidence: c.Schema.MinFinalConfidence,
		SampleSize:         c.Schema.SampleSize,
		Ingest:             c.Ingest,
		QA:                 c.QA,
		Reconcile:          c.Reconcile,
	}
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

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
