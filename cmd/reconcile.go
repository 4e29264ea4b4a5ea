package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/ingest"
	"github.com/sells-group/baseline-cli/internal/reconcile"
)

var reconcileInput string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find the invoice total of each vendor without building the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		totals, err := scanInvoiceTotals(reconcileInput, cfg.Ingest, cfg.Reconcile)
		if err != nil {
			return err
		}
		formatInvoiceTotals(os.Stdout, totals)
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileInput, "input", "", "directory of vendor spreadsheets (required)")
	_ = reconcileCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(reconcileCmd)
}

// invoiceTotal is the billed total recovered for one vendor.
type invoiceTotal struct {
	Vendor string
	Amount float64
	Sheet  string
	Found  bool
}

// scanInvoiceTotals reads every spreadsheet under dir and returns one
// billed total per vendor, sorted by vendor. Unreadable files are logged
// and skipped.
func scanInvoiceTotals(dir string, opts ingest.Options, rc reconcile.Config) ([]invoiceTotal, error) {
	files, err := ingest.Discover(dir)
	if err != nil {
		return nil, err
	}

	engine := reconcile.New(rc)
	vendors := make(map[string]bool)
	for _, path := range files {
		f, err := ingest.Load(path, opts)
		if err != nil {
			zap.L().Warn("reconcile: skipping unreadable file", zap.String("file", path), zap.Error(err))
			continue
		}
		engine.ExtractTotals(f.Sheets, f.Vendor)
		vendors[f.Vendor] = true
	}

	out := make([]invoiceTotal, 0, len(vendors))
	for v := range vendors {
		amount, sheet, ok := engine.BilledTotal(v)
		out = append(out, invoiceTotal{Vendor: v, Amount: amount, Sheet: sheet, Found: ok})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out, nil
}

func formatInvoiceTotals(out io.Writer, totals []invoiceTotal) {
	if len(totals) == 0 {
		fmt.Fprintln(out, "No spreadsheets found.")
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Vendor", "Billed", "Sheet"})
	table.SetBorder(false)
	for _, t := range totals {
		amount, sheet := "not found", ""
		if t.Found {
			amount = "$" + humanize.CommafWithDigits(t.Amount, 2)
			sheet = t.Sheet
		}
		table.Append([]string{t.Vendor, amount, sheet})
	}
	table.Render()
}
