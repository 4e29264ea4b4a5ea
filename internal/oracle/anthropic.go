package oracle

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/resilience"
	"github.com/sells-group/baseline-cli/pkg/anthropic"
)

// Anthropic is a mapping.Oracle backed by Claude. Calls are paced by a rate
// limiter, retried once on transient errors and cut off by a circuit breaker
// after repeated failures.
type Anthropic struct {
	client  anthropic.Client
	cfg     Config
	system  []anthropic.SystemBlock
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewAnthropic creates an oracle over client. examples are rendered into the
// cached system prompt.
func NewAnthropic(client anthropic.Client, cfg Config, examples []mapping.Example) *Anthropic {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = def.TimeoutSecs
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retry := cfg.Resilience.Retry()
	retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")

	breakerCfg := cfg.Resilience.Breaker()
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("oracle: circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Anthropic{
		client:  client,
		cfg:     cfg,
		system:  anthropic.BuildCachedSystemBlocks(systemPrompt(examples), cfg.CacheTTL),
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

// Enabled is false while the circuit breaker is open.
func (a *Anthropic) Enabled() bool {
	return a.breaker.State() != resilience.CircuitOpen
}

// Usage returns the tokens consumed so far.
func (a *Anthropic) Usage() anthropic.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

type fieldProposalWire struct {
	Column     string  `json:"column"`
	Confidence float64 `json:"confidence"`
}

type proposalWire struct {
	Fields    map[string]fieldProposalWire `json:"fields"`
	Reasoning string                       `json:"reasoning"`
}

// Propose asks the model to map req's columns.
func (a *Anthropic) Propose(ctx context.Context, req mapping.ProposeRequest) (*mapping.Proposal, error) {
	text, err := a.call(ctx, "propose", proposePrompt(req))
	if err != nil {
		return nil, err
	}
	var wire proposalWire
	if err := decodeJSON(text, &wire); err != nil {
		return nil, eris.Wrap(err, "oracle: decode proposal")
	}

	p := &mapping.Proposal{
		Fields:    make(map[model.CanonicalField]mapping.FieldProposal, len(wire.Fields)),
		Reasoning: wire.Reasoning,
	}
	for name, fp := range wire.Fields {
		f, err := model.ParseField(name)
		if err != nil || fp.Column == "" {
			zap.L().Debug("oracle: skipping proposed field", zap.String("field", name))
			continue
		}
		p.Fields[f] = mapping.FieldProposal{Column: fp.Column, Confidence: clamp01(fp.Confidence)}
	}
	return p, nil
}

type verdictWire struct {
	Fields            map[string]mapping.FieldVerdict `json:"fields"`
	OverallOK         bool                            `json:"overall_ok"`
	OverallConfidence float64                         `json:"overall_confidence"`
	Reasoning         string                          `json:"reasoning"`
}

// Validate asks the model to judge a heuristic mapping.
func (a *Anthropic) Validate(ctx context.Context, req mapping.ValidateRequest) (*mapping.Verdict, error) {
	text, err := a.call(ctx, "validate", validatePrompt(req))
	if err != nil {
		return nil, err
	}
	var wire verdictWire
	if err := decodeJSON(text, &wire); err != nil {
		return nil, eris.Wrap(err, "oracle: decode verdict")
	}

	v := &mapping.Verdict{
		Fields:            make(map[model.CanonicalField]mapping.FieldVerdict, len(wire.Fields)),
		OverallOK:         wire.OverallOK,
		OverallConfidence: clamp01(wire.OverallConfidence),
		Reasoning:         wire.Reasoning,
	}
	for name, fv := range wire.Fields {
		f, err := model.ParseField(name)
		if err != nil || !req.Mapping.Has(f) {
			continue
		}
		fv.Confidence = clamp01(fv.Confidence)
		v.Fields[f] = fv
	}
	return v, nil
}

func (a *Anthropic) call(ctx context.Context, op, prompt string) (string, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      a.system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}
	timeout := time.Duration(a.cfg.TimeoutSecs) * time.Second

	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			if err := a.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "oracle: rate limiter")
			}
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			resp, err := a.client.CreateMessage(callCtx, req)
			if err != nil {
				return nil, classify(ctx, err)
			}
			return resp, nil
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "oracle: %s", op)
	}

	resp.Usage.LogCost(a.cfg.Model, "oracle_"+op)
	a.mu.Lock()
	a.usage = a.usage.Add(resp.Usage)
	a.mu.Unlock()
	return resp.Text(), nil
}

// classify marks retryable API failures as transient. A per-call timeout is
// retryable while the parent context is still live.
func classify(parent context.Context, err error) error {
	if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(err, code)
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return resilience.NewTransientError(err, 0)
	}
	return err
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
