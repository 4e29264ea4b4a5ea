// Package oracle implements mapping.Oracle. Null is the default; Anthropic
// asks Claude to propose or review field mappings.
package oracle

import (
	"context"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/resilience"
	"github.com/sells-group/baseline-cli/pkg/anthropic"
)

// Config controls the Anthropic oracle.
type Config struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	CacheTTL          string  `yaml:"cache_ttl" mapstructure:"cache_ttl"`

	Resilience resilience.Settings `yaml:"resilience" mapstructure:"resilience"`
}

// DefaultConfig returns the stock oracle settings.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Model:             "claude-haiku-4-5-20251001",
		MaxTokens:         1024,
		TimeoutSecs:       20,
		RequestsPerSecond: 2,
		CacheTTL:          "1h",
		Resilience: resilience.Settings{
			MaxAttempts:      2,
			InitialBackoffMs: 500,
			MaxBackoffMs:     5000,
			FailureThreshold: 3,
			ResetTimeoutSecs: 60,
		},
	}
}

// Null is the oracle used when no model is configured.
type Null struct{}

func (Null) Enabled() bool { return false }

func (Null) Propose(context.Context, mapping.ProposeRequest) (*mapping.Proposal, error) {
	return nil, nil
}

func (Null) Validate(context.Context, mapping.ValidateRequest) (*mapping.Verdict, error) {
	return nil, nil
}

// New returns an Anthropic oracle when cfg enables it and an API key is
// present, and Null otherwise.
func New(cfg Config, apiKey string) mapping.Oracle {
	if !cfg.Enabled || apiKey == "" {
		return Null{}
	}
	return NewAnthropic(anthropic.NewClient(apiKey), cfg, mapping.DefaultExamples())
}
