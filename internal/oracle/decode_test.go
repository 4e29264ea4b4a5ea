package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", "Here is the mapping:\n{\"a\": 1}\nLet me know.", `{"a": 1}`},
		{"no object", "sorry", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type out struct {
		Fields    map[string]fieldProposalWire `json:"fields"`
		Reasoning string                       `json:"reasoning"`
	}

	tests := []struct {
		name string
		in   string
	}{
		{"strict", `{"fields": {"date": {"column": "Call Date", "confidence": 0.9}}, "reasoning": "ok"}`},
		{"trailing comma", `{"fields": {"date": {"column": "Call Date", "confidence": 0.9},}, "reasoning": "ok",}`},
		{"single quotes", `{'fields': {'date': {'column': 'Call Date', 'confidence': 0.9}}, 'reasoning': 'ok'}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got out
			require.NoError(t, decodeJSON(tt.in, &got))
			assert.Equal(t, "Call Date", got.Fields["date"].Column)
			assert.InDelta(t, 0.9, got.Fields["date"].Confidence, 1e-9)
			assert.Equal(t, "ok", got.Reasoning)
		})
	}
}

func TestDecodeJSON_Empty(t *testing.T) {
	var v map[string]any
	assert.Error(t, decodeJSON("   ", &v))
}

func TestDecodeHJSON(t *testing.T) {
	in := "{\n  # model commentary\n  overall_ok: true\n  overall_confidence: 0.8\n  reasoning: columns look right\n}"
	var got verdictWire
	require.NoError(t, decodeHJSON(in, &got))
	assert.True(t, got.OverallOK)
	assert.InDelta(t, 0.8, got.OverallConfidence, 1e-9)
	assert.Equal(t, "columns look right", got.Reasoning)
}
