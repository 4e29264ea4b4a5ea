package infer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/baseline-cli/internal/model"
)

func TestEngine_Infer(t *testing.T) {
	t.Parallel()

	e := NewEngine(0)

	tests := []struct {
		name   string
		values []string
		want   Type
	}{
		{
			name:   "iso dates",
			values: []string{"2024-01-05", "2024-01-06", "2024-01-07", "2024-02-01"},
			want:   TypeDate,
		},
		{
			name:   "us dates with time",
			values: []string{"01/05/2024 10:30", "01/06/2024 11:00", "01/07/2024 09:15"},
			want:   TypeDate,
		},
		{
			name:   "languages",
			values: []string{"Spanish", "Mandarin", "Haitian Creole", "Spanish - Medical"},
			want:   TypeLanguage,
		},
		{
			name:   "durations",
			values: []string{"12", "30", "45 min", "8", "15", "1,2"},
			want:   TypeMinutes,
		},
		{
			name:   "currency",
			values: []string{"$12.50", "$30.00", "$1,045.25", "$8.75"},
			want:   TypeCharge,
		},
		{
			name:   "free text",
			values: []string{"Acme Health", "North Clinic", "Main St"},
			want:   TypeUnknown,
		},
		{
			name:   "all null",
			values: []string{"", "nan", "None"},
			want:   TypeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := e.Infer(tt.values)
			assert.Equal(t, tt.want, got.Type, "scores: %v", got.Scores)
		})
	}
}

func TestEngine_Infer_Deterministic(t *testing.T) {
	t.Parallel()

	e := NewEngine(100)
	vals := []string{"0.75", "0.80", "0.79", "0.75", "0.81", "0.75", "0.77"}
	first := e.Infer(vals)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Infer(vals))
	}
}

func TestEngine_Infer_RateBonuses(t *testing.T) {
	t.Parallel()

	e := NewEngine(100)
	got := e.Infer([]string{"0.75", "0.80", "0.79", "0.75", "0.81", "0.75", "0.77"})
	assert.Equal(t, 1.0, got.Scores[TypeRate])
	assert.Equal(t, 1.0, got.Confidence)
}

func TestEngine_Infer_SampleCap(t *testing.T) {
	t.Parallel()

	vals := make([]string, 0, 200)
	for i := 0; i < 10; i++ {
		vals = append(vals, "2024-01-01")
	}
	for i := 0; i < 190; i++ {
		vals = append(vals, "Spanish")
	}
	got := NewEngine(10).Infer(vals)
	assert.Equal(t, TypeDate, got.Type)
}

func TestScoreMinutes_CurrencyPenalty(t *testing.T) {
	t.Parallel()

	plain := scoreMinutes([]string{"10", "20", "30"})
	precise := scoreMinutes([]string{"10.125", "20.333", "30.501"})
	assert.Equal(t, 1.0, plain)
	assert.InDelta(t, 0.7, precise, 1e-9)
}

func TestEngine_InferTable(t *testing.T) {
	t.Parallel()

	tbl := model.RawTable{
		Columns: []string{"Service Date", "Language"},
		Rows: [][]string{
			{"2024-03-01", "Spanish"},
			{"2024-03-02", "Arabic"},
		},
	}
	res := NewEngine(0).InferTable(tbl)
	require.Len(t, res, 2)
	assert.Equal(t, TypeDate, res["Service Date"].Type)
	assert.Equal(t, model.FieldLanguage, res["Language"].Type.Field())
	assert.Equal(t, model.CanonicalField(""), TypeUnknown.Field())
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-05", day(2024, 3, 5), true},
		{"2024-03", day(2024, 3, 1), true},
		{"03/05/2024", day(2024, 3, 5), true},
		{"3/5/24", day(2024, 3, 5), true},
		{"2024/03/05", day(2024, 3, 5), true},
		{"05-Mar-24", day(2024, 3, 5), true},
		{"March 5, 2024", day(2024, 3, 5), true},
		{"Mar 5, 2024", day(2024, 3, 5), true},
		{"2024-03-05 14:22:01", day(2024, 3, 5), true},
		{"2024-03-05T14:22:01Z", day(2024, 3, 5), true},
		{"3/5/2024 2:30 PM", day(2024, 3, 5), true},
		{"45356", day(2024, 3, 5), true},
		{"Spanish", time.Time{}, false},
		{"", time.Time{}, false},
		{"nan", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{"$1,234.50", 1234.5, true},
		{"45 min", 45, true},
		{"45 Minutes", 45, true},
		{"USD 10.00", 10, true},
		{"12:30", 12.5, true},
		{"01:02:30", 62.5, true},
		{"(5.00)", -5, true},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestLanguageMatch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, LanguageMatch("Spanish"))
	assert.Equal(t, 1.0, LanguageMatch(" ASL "))
	assert.Equal(t, 0.8, LanguageMatch("Spanish - Medical"))
	assert.Equal(t, 0.0, LanguageMatch("Klingon"))
	assert.True(t, IsKnownLanguage("haitian creole"))
	assert.Contains(t, KnownLanguages(), "tigrinya")
}

func TestRates(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, DateParseRate([]string{"2024-01-01", "soon", "", "n/a"}), 1e-9)
	assert.InDelta(t, 2.0/3.0, LanguageMatchRate([]string{"Spanish", "Farsi", "Zzz"}), 1e-9)
	assert.InDelta(t, 0.5, NumericRate([]string{"$5", "-3", "nan"}), 1e-9)
	assert.Equal(t, 0.0, NumericRate(nil))
}
