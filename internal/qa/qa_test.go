package qa

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/baseline-cli/internal/model"
)

var march1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func rec(lang string, minutes, charge float64) model.CanonicalRecord {
	return model.NewRecord("acme.xlsx", "Acme", march1, lang, "OPI", minutes, charge, nil)
}

// population returns n records alternating between $0.70 and $0.90 a minute.
func population(n int) []model.CanonicalRecord {
	out := make([]model.CanonicalRecord, 0, n)
	for i := 0; i < n; i++ {
		charge := 7.0
		if i%2 == 1 {
			charge = 9.0
		}
		r := rec("Spanish", 10, charge)
		r.RawColumns = map[string]string{"Call ID": fmt.Sprint(i)}
		out = append(out, r)
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	e := New(Config{RateZThreshold: 2})
	assert.Equal(t, Config{RateZThreshold: 2, MaxDurationMinutes: 240, MinRate: 0.10, MaxRate: 5.00}, e.cfg)
}

func TestProcess_Empty(t *testing.T) {
	t.Parallel()

	out, stats := New(DefaultConfig()).Process(nil)
	assert.Empty(t, out)
	assert.Zero(t, stats.TotalInput)
	assert.NotNil(t, stats.IssueCounts)
}

func TestProcess_DuplicateRemoved(t *testing.T) {
	t.Parallel()

	records := []model.CanonicalRecord{rec("Spanish", 10, 8), rec("Spanish", 10, 8), rec("French", 10, 8)}
	out, stats := New(DefaultConfig()).Process(records)

	assert.Equal(t, 1, stats.DuplicatesRemoved)
	assert.Len(t, out, 2)
	assert.Equal(t, 3, stats.TotalInput)
	assert.Equal(t, 2, stats.TotalOutput)
}

func TestProcess_IDColumnSeparatesTransactions(t *testing.T) {
	t.Parallel()

	a, b := rec("Spanish", 10, 8), rec("Spanish", 10, 8)
	a.RawColumns = map[string]string{"Session ID": "S-1"}
	b.RawColumns = map[string]string{"Session ID": "S-2"}

	out, stats := New(DefaultConfig()).Process([]model.CanonicalRecord{a, b})
	assert.Zero(t, stats.DuplicatesRemoved)
	assert.Len(t, out, 2)
}

func TestProcess_MissingCostQuarantined(t *testing.T) {
	t.Parallel()

	records := append(population(4), rec("Arabic", 10, 0))
	out, stats := New(DefaultConfig()).Process(records)

	assert.Equal(t, 1, stats.Quarantined)
	assert.Equal(t, 1, stats.IssueCounts[IssueMissingCost])
	require.Len(t, out, 4)
	for _, r := range out {
		assert.NotEqual(t, "Arabic", r.Language)
	}

	require.Len(t, stats.QuarantinedRecords, 1)
	q := stats.QuarantinedRecords[0]
	assert.Equal(t, model.QAQuarantined, q.QAStatus)
	assert.Equal(t, "QUARANTINED", q.RawColumns[model.AnnotationQAStatus])
	assert.Equal(t, "Missing Cost", q.RawColumns[model.AnnotationQAIssues])
	assert.Equal(t, 0.5, q.ConfidenceScore)
}

func TestProcess_MissingIdentityQuarantined(t *testing.T) {
	t.Parallel()

	noDate := rec("Spanish", 10, 8)
	noDate.Date = time.Time{}
	records := []model.CanonicalRecord{rec("unknown", 10, 8), rec("", 10, 8), noDate}

	out, stats := New(DefaultConfig()).Process(records)
	assert.Empty(t, out)
	assert.Equal(t, 3, stats.Quarantined)
	assert.Equal(t, 2, stats.IssueCounts[IssueMissingLanguage])
	assert.Equal(t, 1, stats.IssueCounts[IssueMissingDate])
}

func TestProcess_RateOutlierFlagged(t *testing.T) {
	t.Parallel()

	records := population(1000)
	records = append(records, rec("Somali", 10, 30))

	out, stats := New(DefaultConfig()).Process(records)
	require.Len(t, out, 1001)
	assert.InDelta(t, 0.80, stats.MeanRate, 0.01)
	assert.Equal(t, 1, stats.OutliersFlagged)
	assert.Equal(t, 1, stats.IssueCounts[IssueRateOutlier])

	outlier := out[1000]
	assert.Equal(t, model.QAFlagged, outlier.QAStatus)
	assert.Equal(t, 0.5, outlier.ConfidenceScore)
	require.Len(t, outlier.QAIssues, 1)
	assert.Contains(t, outlier.QAIssues[0], "Statistical Rate Outlier")
	assert.Greater(t, (outlier.RatePerMinute-stats.MeanRate)/stats.StdRate, 15.0)

	assert.Equal(t, model.QAClean, out[0].QAStatus)
	assert.Equal(t, 1.0, out[0].ConfidenceScore)
}

func TestProcess_QuarantineDoesNotSkewRates(t *testing.T) {
	t.Parallel()

	records := population(10)
	bad := model.NewRecord("acme.xlsx", "Acme", march1, "nan", "OPI", 1, 500, nil)
	records = append(records, bad)

	_, stats := New(DefaultConfig()).Process(records)
	assert.InDelta(t, 0.80, stats.MeanRate, 1e-9)
	assert.Equal(t, 1, stats.Quarantined)
}

func TestProcess_SanityAndBandFlags(t *testing.T) {
	t.Parallel()

	onsite := rec("French", 60, 600)
	onsite.Modality = "OnSite"
	onsite.RawColumns = map[string]string{"id": "4"}

	records := []model.CanonicalRecord{
		rec("Spanish", 0, 0),
		rec("Spanish", 300, 240),
		rec("Spanish", 100, 5),
		rec("Spanish", 10, 60),
		onsite,
	}
	out, stats := New(DefaultConfig()).Process(records)
	require.Len(t, out, 5)

	assert.Equal(t, 1, stats.IssueCounts[IssueZeroDuration])
	assert.Equal(t, 1, stats.IssueCounts[IssueExcessiveDuration])
	assert.Equal(t, 1, stats.IssueCounts[IssueRateLow])
	assert.Equal(t, 1, stats.IssueCounts[IssueRateHigh])
	assert.Equal(t, 4, stats.OutliersFlagged)
	assert.Equal(t, model.QAClean, out[4].QAStatus, "onsite is exempt from the upper band")
}

func TestProcess_Idempotent(t *testing.T) {
	t.Parallel()

	records := population(200)
	records = append(records,
		rec("Somali", 10, 30),
		rec("Somali", 10, 30),
		rec("Arabic", 10, 0),
		rec("Tigrinya", 0, 0),
	)
	e := New(DefaultConfig())

	first, s1 := e.Process(records)
	second, s2 := e.Process(first)

	assert.Equal(t, first, second)
	assert.Zero(t, s2.DuplicatesRemoved)
	assert.Zero(t, s2.Quarantined)
	assert.Equal(t, s1.OutliersFlagged, s2.OutliersFlagged)
	assert.Equal(t, s1.MeanRate, s2.MeanRate)
}

func TestProcess_OutputInvariants(t *testing.T) {
	t.Parallel()

	records := population(50)
	records = append(records, rec("Spanish", 10, 0), rec("", 5, 5))
	records = append(records, population(5)...)
	out, _ := New(DefaultConfig()).Process(records)

	keys := make(map[string]bool)
	for _, r := range out {
		assert.False(t, r.MinutesBilled > 0 && r.TotalCharge <= 0)
		assert.True(t, r.HasLanguage())
		k := DuplicateKey(r)
		assert.False(t, keys[k], "duplicate key in clean output")
		keys[k] = true
	}
}

func TestProcess_DoesNotMutateInputAnnotations(t *testing.T) {
	t.Parallel()

	in := []model.CanonicalRecord{rec("Spanish", 0, 0)}
	in[0].RawColumns = map[string]string{"Language": "Spanish"}

	New(DefaultConfig()).Process(in)
	assert.NotContains(t, in[0].RawColumns, model.AnnotationQAStatus)
}

func TestDuplicateKey(t *testing.T) {
	t.Parallel()

	a := rec(" Spanish", 10, 8)
	b := rec("spanish ", 10.00001, 8)
	assert.Equal(t, DuplicateKey(a), DuplicateKey(b), "minutes compared at 4 decimals")

	start := march1.Add(9 * time.Hour)
	b.StartTime = &start
	assert.NotEqual(t, DuplicateKey(a), DuplicateKey(b))
}
