package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/resilience"
	"github.com/sells-group/baseline-cli/pkg/anthropic"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0
	cfg.Resilience = resilience.Settings{
		MaxAttempts:      2,
		InitialBackoffMs: 1,
		MaxBackoffMs:     2,
		FailureThreshold: 2,
		ResetTimeoutSecs: 60,
	}
	return cfg
}

func apiError(code int) *sdk.Error {
	return &sdk.Error{
		StatusCode: code,
		Request:    httptest.NewRequest(http.MethodPost, "/v1/messages", nil),
		Response:   &http.Response{StatusCode: code},
	}
}

func TestNull(t *testing.T) {
	var o mapping.Oracle = Null{}
	assert.False(t, o.Enabled())
	p, err := o.Propose(context.Background(), mapping.ProposeRequest{})
	assert.NoError(t, err)
	assert.Nil(t, p)
	v, err := o.Validate(context.Background(), mapping.ValidateRequest{})
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestNew(t *testing.T) {
	assert.IsType(t, Null{}, New(DefaultConfig(), ""))

	cfg := DefaultConfig()
	cfg.Enabled = false
	assert.IsType(t, Null{}, New(cfg, "sk-test"))

	assert.IsType(t, &Anthropic{}, New(DefaultConfig(), "sk-test"))
}

func TestAnthropic_Propose(t *testing.T) {
	client := &MockClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 1 &&
			req.System[0].CacheControl != nil &&
			len(req.Messages) == 1 &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(textResponse("```json\n"+`{
  "fields": {
    "date": {"column": "Svc Dt", "confidence": 0.95},
    "language": {"column": "Lang Desc", "confidence": 0.9},
    "cost": {"column": "Amt", "confidence": 1.4},
    "colour": {"column": "Paint", "confidence": 0.9},
    "minutes": {"column": "", "confidence": 0.9}
  },
  "reasoning": "abbreviated headers"
}`+"\n```"), nil).Once()

	o := NewAnthropic(client, testConfig(), mapping.DefaultExamples())
	p, err := o.Propose(context.Background(), mapping.ProposeRequest{
		Vendor:  "Acme",
		Columns: []string{"Svc Dt", "Lang Desc", "Amt", "Paint"},
	})
	require.NoError(t, err)

	assert.Equal(t, "abbreviated headers", p.Reasoning)
	assert.Len(t, p.Fields, 3)
	assert.Equal(t, mapping.FieldProposal{Column: "Svc Dt", Confidence: 0.95}, p.Fields[model.FieldDate])
	assert.Equal(t, "Amt", p.Fields[model.FieldCharge].Column)
	assert.InDelta(t, 1.0, p.Fields[model.FieldCharge].Confidence, 1e-9, "confidence is clamped")

	assert.Equal(t, int64(100), o.Usage().InputTokens)
	assert.Equal(t, int64(900), o.Usage().CacheReadInputTokens)
	client.AssertExpectations(t)
}

func TestAnthropic_Validate(t *testing.T) {
	client := &MockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{
  "fields": {
    "date": {"approve": true, "confidence": 0.9},
    "charge": {"approve": false, "confidence": 0.8, "reason": "these are rates"},
    "modality": {"approve": false, "confidence": 0.9}
  },
  "overall_ok": true,
  "overall_confidence": 0.7,
  "reasoning": "mostly right"
}`), nil).Once()

	o := NewAnthropic(client, testConfig(), nil)
	v, err := o.Validate(context.Background(), mapping.ValidateRequest{
		Mapping: model.FieldMapping{Date: "Date", Charge: "Rate"},
		SampleValues: map[model.CanonicalField][]string{
			model.FieldDate:   {"2024-03-01"},
			model.FieldCharge: {"0.75"},
		},
	})
	require.NoError(t, err)

	assert.True(t, v.OverallOK)
	assert.InDelta(t, 0.7, v.OverallConfidence, 1e-9)
	require.Len(t, v.Fields, 2, "verdicts on unmapped fields are dropped")
	assert.False(t, v.Fields[model.FieldCharge].Approve)
	assert.Equal(t, "these are rates", v.Fields[model.FieldCharge].Reason)
}

func TestAnthropic_RetriesTransientOnce(t *testing.T) {
	client := &MockClient{}
	overloaded := apiError(529)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, overloaded).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"fields": {}, "reasoning": "none"}`), nil).Once()

	o := NewAnthropic(client, testConfig(), nil)
	p, err := o.Propose(context.Background(), mapping.ProposeRequest{Columns: []string{"A"}})
	require.NoError(t, err)
	assert.Empty(t, p.Fields)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestAnthropic_PermanentErrorNotRetried(t *testing.T) {
	client := &MockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, apiError(400)).Once()

	o := NewAnthropic(client, testConfig(), nil)
	_, err := o.Propose(context.Background(), mapping.ProposeRequest{Columns: []string{"A"}})
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestAnthropic_BreakerDisables(t *testing.T) {
	client := &MockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid api key"))

	o := NewAnthropic(client, testConfig(), nil)
	require.True(t, o.Enabled())
	for range 2 {
		_, err := o.Validate(context.Background(), mapping.ValidateRequest{})
		require.Error(t, err)
	}
	assert.False(t, o.Enabled())

	_, err := o.Propose(context.Background(), mapping.ProposeRequest{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestAnthropic_Undecodable(t *testing.T) {
	client := &MockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("I cannot help with that."), nil)

	o := NewAnthropic(client, testConfig(), nil)
	_, err := o.Propose(context.Background(), mapping.ProposeRequest{Columns: []string{"A"}})
	assert.Error(t, err)
	assert.True(t, o.Enabled(), "decode failures do not trip the breaker")
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.True(t, resilience.IsTransient(classify(ctx, apiError(429))))
	assert.False(t, resilience.IsTransient(classify(ctx, apiError(401))))
	assert.True(t, resilience.IsTransient(classify(ctx, context.DeadlineExceeded)))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, resilience.IsTransient(classify(cancelled, errors.New("boom"))))
}

func TestSystemPrompt(t *testing.T) {
	s := systemPrompt(mapping.DefaultExamples())
	assert.Contains(t, s, "Canonical fields")
	assert.Contains(t, s, "Vendor: Propio")
	assert.Contains(t, s, `"minutes":"Connect Time (Minutes:Seconds)"`)
	assert.NotContains(t, systemPrompt(nil), "Worked examples")
}
