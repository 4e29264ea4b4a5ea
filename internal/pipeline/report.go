package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatReport renders a markdown summary of a run.
func FormatReport(r *Result) string {
	var b strings.Builder
	s := r.Summary()

	fmt.Fprintf(&b, "# Baseline Run %s\n", r.RunID)
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Finished: %s (%s)\n", r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	b.WriteString("\n")

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Files: %d processed, %d failed\n", s.FilesProcessed, s.FilesFailed)
	fmt.Fprintf(&b, "- Sheets: %d mapped, %d pending, %d skipped\n", s.SheetsMapped, s.SheetsPending, s.SheetsSkipped)
	fmt.Fprintf(&b, "- Records: %s standardized, %s in ledger\n",
		humanize.Comma(int64(s.RecordsIn)), humanize.Comma(int64(s.RecordsOut)))
	fmt.Fprintf(&b, "- Dropped rows: %s\n", humanize.Comma(int64(s.DroppedRows)))
	fmt.Fprintf(&b, "- Duplicates removed: %d, flagged: %d, quarantined: %d\n", s.Duplicates, s.Flagged, s.Quarantined)
	fmt.Fprintf(&b, "- Calculated total: $%s\n", humanize.CommafWithDigits(s.CalculatedTotal, 2))
	fmt.Fprintf(&b, "- Reconciliation: %s\n\n", s.Reconciliation)

	b.WriteString("## Sheets\n")
	sheets := 0
	for _, f := range r.Files {
		name := filepath.Base(f.Path)
		if f.Error != "" {
			fmt.Fprintf(&b, "- %s: ERROR %s\n", name, f.Error)
			continue
		}
		for _, sh := range f.Sheets {
			sheets++
			fmt.Fprintf(&b, "- %s / %s: %s via %s (%.0f%% confidence, %d records)",
				name, sh.Sheet, sh.Status, sh.Source, sh.Assessment.FinalConfidence*100, sh.Records)
			if sh.Reason != "" {
				fmt.Fprintf(&b, " - %s", sh.Reason)
			}
			b.WriteString("\n")
		}
	}
	if sheets == 0 {
		b.WriteString("No transaction sheets found.\n")
	}
	b.WriteString("\n")

	b.WriteString("## Quality\n")
	fmt.Fprintf(&b, "- Mean rate: $%.2f/min (std %.2f)\n", r.QA.MeanRate, r.QA.StdRate)
	issues := make([]string, 0, len(r.QA.IssueCounts))
	for k := range r.QA.IssueCounts {
		issues = append(issues, k)
	}
	sort.Strings(issues)
	for _, k := range issues {
		fmt.Fprintf(&b, "- %s: %d\n", k, r.QA.IssueCounts[k])
	}
	if len(r.Costs.MissingCostVendors) > 0 {
		fmt.Fprintf(&b, "- Missing cost: %d records (%s)\n",
			r.Costs.MissingCost, strings.Join(r.Costs.MissingCostVendors, ", "))
	}
	b.WriteString("\n")

	b.WriteString("## Reconciliation\n")
	vendors := r.VendorResults()
	if len(vendors) == 0 {
		b.WriteString("No vendors reconciled.\n")
	}
	for _, v := range vendors {
		fmt.Fprintf(&b, "- **%s**: calculated $%s, billed $%s, variance %.2f%% [%s]\n",
			v.Vendor,
			humanize.CommafWithDigits(v.CalculatedTotal, 2),
			humanize.CommafWithDigits(v.BilledTotal, 2),
			v.VariancePct, v.Status)
	}
	return b.String()
}
