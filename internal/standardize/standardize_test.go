package standardize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/baseline-cli/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStandardize(t *testing.T) {
	t.Parallel()

	table := model.RawTable{
		Columns: []string{"Service Date", "Language", "Duration", "Total Charge", "Service"},
		Rows: [][]string{
			{"2024-03-01", "Spanish", "12", "$9.60", "Phone"},
			{"2024-03", " Arabic ", "2:30", "USD 2.00", ""},
			{"03/05/2024 14:22", "French", "1,200 min", "$1,020.00", "Video"},
			{"not a date", "Spanish", "10", "8.00", "Phone"},
			{"2024-03-06", "nan", "10", "8.00", "Phone"},
			{"2024-03-07", "", "10", "8.00", "Phone"},
			{"45359", "Somali", "-4", "abc", "Phone"},
		},
	}
	m := model.FieldMapping{
		Date: "Service Date", Language: "Language", Minutes: "Duration",
		Charge: "Total Charge", Modality: "Service",
	}

	recs, stats := Standardize(table, m, "acme.xlsx", "Acme")

	assert.Equal(t, Stats{InputRows: 7, Records: 4, Dropped: 3, BadDate: 1, MissingLang: 2}, stats)
	require.Len(t, recs, 4)

	assert.Equal(t, day(2024, 3, 1), recs[0].Date)
	assert.InDelta(t, 0.8, recs[0].RatePerMinute, 1e-9)
	assert.Equal(t, "Phone", recs[0].Modality)
	assert.Equal(t, "acme.xlsx", recs[0].SourceFile)
	assert.Equal(t, "Acme", recs[0].Vendor)
	assert.Equal(t, "Spanish", recs[0].RawColumns["Language"])
	assert.Equal(t, 1.0, recs[0].ConfidenceScore)

	assert.Equal(t, day(2024, 3, 1), recs[1].Date, "YYYY-MM is the first of the month")
	assert.Equal(t, "Arabic", recs[1].Language)
	assert.InDelta(t, 2.5, recs[1].MinutesBilled, 1e-9)
	assert.InDelta(t, 2.0, recs[1].TotalCharge, 1e-9)
	assert.Equal(t, model.ModalityUnknown, recs[1].Modality)
	assert.Equal(t, " Arabic ", recs[1].RawColumns["Language"], "raw values are kept verbatim")

	assert.Equal(t, day(2024, 3, 5), recs[2].Date)
	assert.InDelta(t, 1200, recs[2].MinutesBilled, 1e-9)
	assert.InDelta(t, 1020, recs[2].TotalCharge, 1e-9)

	assert.Equal(t, day(2024, 3, 8), recs[3].Date, "Excel serial day")
	assert.Zero(t, recs[3].MinutesBilled)
	assert.Zero(t, recs[3].TotalCharge)
	assert.Zero(t, recs[3].RatePerMinute)
}

func TestStandardize_RecordInvariants(t *testing.T) {
	t.Parallel()

	table := model.RawTable{
		Columns: []string{"Date", "Language", "Minutes", "Charge"},
		Rows: [][]string{
			{"2024-03-01", "Spanish", "0", "5.00"},
			{"2024-03-01", "Spanish", "(3)", "(5.00)"},
			{"2024-03-01", "Spanish", "4", "3.00"},
		},
	}
	m := model.FieldMapping{Date: "Date", Language: "Language", Minutes: "Minutes", Charge: "Charge"}

	recs, _ := Standardize(table, m, "f.csv", "V")
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.MinutesBilled, 0.0)
		assert.GreaterOrEqual(t, r.TotalCharge, 0.0)
		if r.MinutesBilled > 0 {
			assert.InDelta(t, r.TotalCharge/r.MinutesBilled, r.RatePerMinute, 1e-12)
		} else {
			assert.Zero(t, r.RatePerMinute)
		}
	}
}

func TestStandardize_RequiresDateAndLanguage(t *testing.T) {
	t.Parallel()

	table := model.RawTable{
		Columns: []string{"Date", "Minutes"},
		Rows:    [][]string{{"2024-03-01", "10"}},
	}
	recs, stats := Standardize(table, model.FieldMapping{Date: "Date", Minutes: "Minutes"}, "f.csv", "V")
	assert.Empty(t, recs)
	assert.Equal(t, 1, stats.Dropped)
}

func TestStandardize_Timestamps(t *testing.T) {
	t.Parallel()

	table := model.RawTable{
		Columns: []string{"Date", "Language", "Start Time", "End Time"},
		Rows: [][]string{
			{"2024-03-01", "Spanish", "9:05 am", "09:17"},
			{"2024-03-02", "Spanish", "2024-03-02 10:00:00", ""},
			{"2024-03-03", "Spanish", "", ""},
		},
	}
	m := model.FieldMapping{Date: "Date", Language: "Language"}

	recs, stats := Standardize(table, m, "f.csv", "V")
	require.Len(t, recs, 3)
	assert.Equal(t, 2, stats.TimestampRows)

	require.NotNil(t, recs[0].StartTime)
	require.NotNil(t, recs[0].EndTime)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC), *recs[0].StartTime)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 17, 0, 0, time.UTC), *recs[0].EndTime)

	require.NotNil(t, recs[1].StartTime)
	assert.Equal(t, 10, recs[1].StartTime.Hour())
	assert.Nil(t, recs[1].EndTime)

	assert.Nil(t, recs[2].StartTime)
}

func TestStats_Add(t *testing.T) {
	t.Parallel()

	s := Stats{InputRows: 2, Records: 1, Dropped: 1, BadDate: 1}
	s.Add(Stats{InputRows: 3, Records: 3, TimestampRows: 2})
	assert.Equal(t, Stats{InputRows: 5, Records: 4, Dropped: 1, BadDate: 1, TimestampRows: 2}, s)
}
