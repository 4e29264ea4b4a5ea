package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    CanonicalField
		wantErr bool
	}{
		{in: "date", want: FieldDate},
		{in: " Language ", want: FieldLanguage},
		{in: "cost", want: FieldCharge},
		{in: "rate", want: FieldRate},
		{in: "invoice", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseField(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllFields_ReturnsCopy(t *testing.T) {
	t.Parallel()

	fields := AllFields()
	require.Len(t, fields, 6)
	fields[0] = "mutated"
	assert.Equal(t, FieldDate, AllFields()[0])
}

func TestFieldMapping_SetRefusesDuplicateColumn(t *testing.T) {
	t.Parallel()

	var m FieldMapping
	assert.True(t, m.Set(FieldDate, "Service Date"))
	assert.False(t, m.Set(FieldLanguage, "Service Date"), "column already used by date")
	assert.False(t, m.Set(FieldDate, "Other"), "field already mapped")
	assert.True(t, m.Set(FieldLanguage, "Language"))

	assert.Equal(t, []CanonicalField{FieldDate, FieldLanguage}, m.Fields())
	assert.Equal(t, []string{"Service Date", "Language"}, m.Columns())
	require.NoError(t, m.Validate(nil))
}

func TestFieldMapping_Merge_FirstWriterWins(t *testing.T) {
	t.Parallel()

	m := FieldMapping{Date: "Date", Minutes: "Qty"}
	added := m.Merge(FieldMapping{Date: "Call Date", Language: "Lang", Charge: "Qty"})

	assert.Equal(t, []CanonicalField{FieldLanguage}, added)
	assert.Equal(t, "Date", m.Date)
	assert.Equal(t, "", m.Charge, "Qty is already minutes")
}

func TestFieldMapping_Missing(t *testing.T) {
	t.Parallel()

	m := FieldMapping{Language: "Lang", Minutes: "Qty"}
	assert.Equal(t, []CanonicalField{FieldDate}, m.Missing(RecordFields()...))
	assert.Empty(t, m.Missing(FieldLanguage, FieldMinutes))
}

func TestFieldMapping_Validate(t *testing.T) {
	t.Parallel()

	m := FieldMapping{Date: "Date", Language: "Lang"}
	assert.NoError(t, m.Validate([]string{"Date", "Lang", "Minutes"}))
	assert.Error(t, m.Validate([]string{"Date"}))
	assert.True(t, m.CoveredBy([]string{"Lang", "Date"}))

	dup := FieldMapping{Date: "X", Language: "X"}
	err := dup.Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assigned to both")
}

func TestFieldMapping_Diff(t *testing.T) {
	t.Parallel()

	orig := FieldMapping{Date: "Date", Minutes: "Qty"}
	corrected := FieldMapping{Date: "Date", Minutes: "Duration", Charge: "Qty"}

	diffs := orig.Diff(corrected)
	assert.Equal(t, []FieldDiff{
		{Field: FieldMinutes, From: "Qty", To: "Duration"},
		{Field: FieldCharge, From: "", To: "Qty"},
	}, diffs)
}

func TestFieldMapping_JSON(t *testing.T) {
	t.Parallel()

	m := FieldMapping{Date: "Service Date", Charge: "Total"}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"Service Date","charge":"Total"}`, string(data))

	var back FieldMapping
	require.NoError(t, json.Unmarshal([]byte(`{"date":"Service Date","cost":"Total","rate":""}`), &back))
	assert.Equal(t, m, back)

	assert.Error(t, json.Unmarshal([]byte(`{"vendor":"x"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"date":"x","language":"x"}`), &back))
}

func TestSourceStats_SuccessRate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, SourceStats{}.SuccessRate())
	assert.InDelta(t, 0.75, SourceStats{Total: 4, Corrected: 1}.SuccessRate(), 1e-9)
	assert.Equal(t, 0.0, SourceStats{Total: 1, Corrected: 3}.SuccessRate())
}
