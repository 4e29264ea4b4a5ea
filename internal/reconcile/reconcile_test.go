package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/baseline-cli/internal/model"
)

func TestExtractTotals_GrandTotal(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	sheets := []model.RawSheet{{
		Name: "Sheet2",
		Cells: [][]string{
			{"Acme Language Services"},
			{"Grand Total", "", "$12,345.67"},
		},
	}}
	require.True(t, e.ExtractTotals(sheets, "Acme"))

	amount, sheet, ok := e.BilledTotal("Acme")
	require.True(t, ok)
	assert.InDelta(t, 12345.67, amount, 1e-9)
	assert.Equal(t, "Sheet2", sheet)
}

func TestExtractTotals_WrapsRows(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	sheets := []model.RawSheet{{
		Name: "Invoice",
		Cells: [][]string{
			{"Item", "Qty", "Total Amount Due"},
			{"$980.00"},
		},
	}}
	require.True(t, e.ExtractTotals(sheets, "Acme"))
	amount, _, _ := e.BilledTotal("Acme")
	assert.InDelta(t, 980.0, amount, 1e-9)
}

func TestExtractTotals_IgnoresSmallAndFarValues(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	row := []string{"Amount Due", "3.00", "", "", "", "", "", "", "", "", "$500.00"}
	assert.False(t, e.ExtractTotals([]model.RawSheet{{Name: "Detail", Cells: [][]string{row}}}, "Acme"))
	_, _, ok := e.BilledTotal("Acme")
	assert.False(t, ok)
}

func TestExtractTotals_PrefersSummarySheet(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	sheets := []model.RawSheet{
		{Name: "Detail", Cells: [][]string{{"Grand Total", "90,000.00"}}},
		{Name: "Billing Summary", Cells: [][]string{
			{"Net Amount", "1,000.00"},
			{"Total Charges", "1,250.00"},
		}},
	}
	require.True(t, e.ExtractTotals(sheets, "Acme"))
	amount, sheet, _ := e.BilledTotal("Acme")
	assert.InDelta(t, 1250.0, amount, 1e-9)
	assert.Equal(t, "Billing Summary", sheet)

	// A later file without a summary sheet does not displace it.
	e.ExtractTotals([]model.RawSheet{{Name: "Data", Cells: [][]string{{"Invoice Total", "5000"}}}}, "Acme")
	amount, _, _ = e.BilledTotal("Acme")
	assert.InDelta(t, 1250.0, amount, 1e-9)
}

func TestExtractTotals_Concurrent(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.ExtractTotals([]model.RawSheet{{Name: "Invoice", Cells: [][]string{{"Grand Total", "100.00"}}}}, "Acme")
		}()
	}
	wg.Wait()
	amount, _, ok := e.BilledTotal("Acme")
	require.True(t, ok)
	assert.InDelta(t, 100.0, amount, 1e-9)
}

func record(vendor string, minutes, charge float64) model.CanonicalRecord {
	return model.NewRecord(vendor+".xlsx", vendor, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Spanish", "OPI", minutes, charge, nil)
}

func TestRun(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	e.ExtractTotals([]model.RawSheet{{Name: "Invoice", Cells: [][]string{{"Grand Total", "$100.00"}}}}, "Acme")
	e.ExtractTotals([]model.RawSheet{{Name: "Invoice", Cells: [][]string{{"Grand Total", "$200.00"}}}}, "Lingua")
	e.ExtractTotals([]model.RawSheet{{Name: "Invoice", Cells: [][]string{{"Grand Total", "$50.00"}}}}, "Ghost")

	records := []model.CanonicalRecord{
		record("Acme", 60, 49.50),
		record("Acme", 60, 49.00),
		record("Lingua", 100, 80.00),
		record("Solo", 10, 8.00),
	}
	report := e.Run(records)

	require.Len(t, report.Vendors, 4)
	acme := report.Vendors["Acme"]
	assert.Equal(t, model.ReconcileMatch, acme.Status)
	assert.InDelta(t, 98.50, acme.CalculatedTotal, 1e-9)
	assert.InDelta(t, 120, acme.CalculatedMinutes, 1e-9)
	assert.Equal(t, 2, acme.RecordCount)
	assert.InDelta(t, -1.50, acme.Variance, 1e-9)
	assert.InDelta(t, -1.50, acme.VariancePct, 1e-9)

	lingua := report.Vendors["Lingua"]
	assert.Equal(t, model.ReconcileDiscrepancy, lingua.Status)
	assert.InDelta(t, -60, lingua.VariancePct, 1e-9)

	assert.Equal(t, model.ReconcileNoInvoice, report.Vendors["Solo"].Status)
	ghost := report.Vendors["Ghost"]
	assert.Equal(t, model.ReconcileDiscrepancy, ghost.Status)
	assert.Zero(t, ghost.RecordCount)

	assert.Equal(t, model.OverallAlert, report.OverallStatus)
	assert.InDelta(t, 1.5+120+8+50, report.TotalVariance, 1e-9)
	assert.Equal(t, []string{"Ghost", "Lingua"}, report.Discrepancies())
}

func TestRun_AllMatch(t *testing.T) {
	t.Parallel()

	e := New(DefaultConfig())
	e.ExtractTotals([]model.RawSheet{{Name: "Invoice", Cells: [][]string{{"Grand Total", "$8.00"}}}}, "Acme")
	report := e.Run([]model.CanonicalRecord{record("Acme", 10, 8)})
	assert.Equal(t, model.OverallMatch, report.OverallStatus)
	assert.Empty(t, report.Discrepancies())
}

func TestRun_QuarantinedNeverCounted(t *testing.T) {
	t.Parallel()

	// Clean output of QA never includes the missing-cost record, so the
	// calculated total only reflects what is passed in.
	e := New(DefaultConfig())
	report := e.Run([]model.CanonicalRecord{record("Acme", 10, 8)})
	assert.InDelta(t, 8.0, report.Vendors["Acme"].CalculatedTotal, 1e-9)
}
