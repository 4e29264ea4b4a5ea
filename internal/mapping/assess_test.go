package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/baseline-cli/internal/model"
)

func TestFieldConfidence(t *testing.T) {
	tests := []struct {
		name string
		m    model.FieldMapping
		want float64
	}{
		{"all four", model.FieldMapping{Date: "a", Language: "b", Minutes: "c", Charge: "d"}, 1},
		{"no charge", model.FieldMapping{Date: "a", Language: "b", Minutes: "c"}, 0.75},
		{"rate does not count", model.FieldMapping{Date: "a", Rate: "b"}, 0.25},
		{"empty", model.FieldMapping{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FieldConfidence(tt.m), 1e-9)
		})
	}
}

func TestAssess_NoRows(t *testing.T) {
	table := model.RawTable{Columns: []string{"Date", "Language"}}
	a := Assess(table, model.FieldMapping{Date: "Date", Language: "Language"}, 0)

	assert.InDelta(t, 0.5, a.FieldConfidence, 1e-9)
	assert.Zero(t, a.Sampled)
	assert.Zero(t, a.FinalConfidence)
}

func TestAssess_CrossFieldAgreement(t *testing.T) {
	table := model.RawTable{
		Columns: []string{"Date", "Language", "Minutes", "Charge", "Rate"},
		Rows: [][]string{
			{"2024-03-01", "Spanish", "10", "8.00", "0.80"},
			{"2024-03-02", "French", "10", "20.00", "0.80"},
		},
	}
	m := model.FieldMapping{Date: "Date", Language: "Language", Minutes: "Minutes", Charge: "Charge", Rate: "Rate"}

	a := Assess(table, m, 0)
	assert.Equal(t, 2, a.Sampled)
	assert.InDelta(t, 1.0, a.DataConfidence, 1e-9)
	assert.InDelta(t, 2.5/3, a.CrossFieldConfidence, 1e-9)
	assert.InDelta(t, 0.7+0.3*2.5/3, a.FinalConfidence, 1e-9)
}

func TestAssess_DataConfidence(t *testing.T) {
	table := model.RawTable{
		Columns: []string{"Date", "Language", "Minutes", "Charge"},
		Rows: [][]string{
			{"2024-03-01", "Spanish", "10", "$8.00"},
			{"2024-03-02", "French", "abc", "$4.00"},
		},
	}
	m := model.FieldMapping{Date: "Date", Language: "Language", Minutes: "Minutes", Charge: "Charge"}

	a := Assess(table, m, 0)
	assert.InDelta(t, 0.875, a.DataConfidence, 1e-9)
	assert.InDelta(t, 1.0, a.CrossFieldConfidence, 1e-9)
	assert.InDelta(t, 0.7*0.875+0.3, a.FinalConfidence, 1e-9)
}

func TestAssess_FinalCappedByFieldConfidence(t *testing.T) {
	table := model.RawTable{
		Columns: []string{"Date", "Language"},
		Rows:    [][]string{{"2024-03-01", "Spanish"}},
	}
	a := Assess(table, model.FieldMapping{Date: "Date", Language: "Language"}, 0)
	assert.InDelta(t, 0.5, a.FinalConfidence, 1e-9)
}

func TestAssess_LanguageNullTokensFail(t *testing.T) {
	table := model.RawTable{
		Columns: []string{"Language"},
		Rows:    [][]string{{"Spanish"}, {"nan"}, {""}, {"Klingon"}, {"Elvish"}},
	}
	a := Assess(table, model.FieldMapping{Language: "Language"}, 0)
	assert.InDelta(t, 0.75, a.DataConfidence, 1e-9)
	// One of three non-null values is a known language, plus the 0.5 allowance.
	assert.InDelta(t, 1.0/3+0.5, a.CrossFieldConfidence, 1e-9)
}

func TestAssess_SampleSizeCapsRows(t *testing.T) {
	table := model.RawTable{
		Columns: []string{"Date"},
		Rows:    [][]string{{"2024-03-01"}, {"2024-03-02"}, {"bogus"}},
	}
	a := Assess(table, model.FieldMapping{Date: "Date"}, 2)
	assert.Equal(t, 2, a.Sampled)
	assert.InDelta(t, 1.0, a.DataConfidence, 1e-9)
}
