// Package reconcile compares the sum of clean records per vendor with the
// total printed on the vendor's invoice.
package reconcile

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/infer"
	"github.com/sells-group/baseline-cli/internal/model"
)

// Config controls invoice total recovery and the match tolerance.
type Config struct {
	Phrases      []string `yaml:"phrases" mapstructure:"phrases"`
	SummarySheet []string `yaml:"summary_sheet" mapstructure:"summary_sheet"`
	ScanWindow   int      `yaml:"scan_window" mapstructure:"scan_window"`
	MinTotal     float64  `yaml:"min_total" mapstructure:"min_total"`
	TolerancePct float64  `yaml:"tolerance_pct" mapstructure:"tolerance_pct"`
}

// DefaultConfig returns the stock phrases and thresholds.
func DefaultConfig() Config {
	return Config{
		Phrases: []string{
			"total amount due", "grand total", "total charges",
			"invoice total", "amount due", "net amount",
		},
		SummarySheet: []string{"invoice", "summary", "total", "billing"},
		ScanWindow:   9,
		MinTotal:     5.0,
		TolerancePct: 2.0,
	}
}

// Report is the outcome of one reconciliation.
type Report struct {
	Vendors       map[string]model.ReconciliationVendorResult `json:"vendors"`
	OverallStatus model.OverallStatus                         `json:"overall_status"`
	TotalVariance float64                                     `json:"total_variance"`
}

// Discrepancies returns the vendors whose totals disagree, sorted.
func (r Report) Discrepancies() []string {
	var out []string
	for v, res := range r.Vendors {
		if res.Status == model.ReconcileDiscrepancy {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

type billed struct {
	amount    float64
	sheet     string
	preferred bool
}

// Engine remembers the billed total found for each vendor. ExtractTotals
// may be called from several goroutines.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	totals map[string]billed
}

// New creates an Engine. Unset fields take their defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.Phrases) == 0 {
		cfg.Phrases = def.Phrases
	}
	if len(cfg.SummarySheet) == 0 {
		cfg.SummarySheet = def.SummarySheet
	}
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = def.ScanWindow
	}
	if cfg.MinTotal <= 0 {
		cfg.MinTotal = def.MinTotal
	}
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = def.TolerancePct
	}
	return &Engine{cfg: cfg, totals: make(map[string]billed)}
}

// ExtractTotals scans every cell of sheets, row by row, for a total phrase
// and takes the first amount above MinTotal within the next ScanWindow
// cells. A candidate on a sheet named like an invoice or summary beats one
// from any other sheet; among equals the largest wins. It reports whether a
// total is now known for vendor.
func (e *Engine) ExtractTotals(sheets []model.RawSheet, vendor string) bool {
	var best *billed
	for _, sh := range sheets {
		preferred := e.summarySheet(sh.Name)
		cells := flatten(sh.Cells)
		for i, c := range cells {
			if !e.isTotalPhrase(c) {
				continue
			}
			amount, ok := e.amountAfter(cells, i)
			if !ok {
				continue
			}
			cand := billed{amount: amount, sheet: sh.Name, preferred: preferred}
			if best == nil || better(cand, *best) {
				best = &cand
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if best != nil {
		if cur, ok := e.totals[vendor]; !ok || better(*best, cur) {
			e.totals[vendor] = *best
			zap.L().Debug("reconcile: invoice total found",
				zap.String("vendor", vendor),
				zap.String("sheet", best.sheet),
				zap.Float64("amount", best.amount),
			)
		}
	}
	_, ok := e.totals[vendor]
	return ok
}

func better(a, b billed) bool {
	if a.preferred != b.preferred {
		return a.preferred
	}
	return a.amount > b.amount
}

// BilledTotal returns the invoice total recovered for vendor and the sheet
// it came from.
func (e *Engine) BilledTotal(vendor string) (float64, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.totals[vendor]
	return b.amount, b.sheet, ok
}

func (e *Engine) summarySheet(name string) bool {
	n := strings.ToLower(name)
	for _, s := range e.cfg.SummarySheet {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

func (e *Engine) isTotalPhrase(cell string) bool {
	c := strings.ToLower(strings.TrimSpace(cell))
	if c == "" {
		return false
	}
	for _, p := range e.cfg.Phrases {
		if strings.Contains(c, p) {
			return true
		}
	}
	return false
}

func (e *Engine) amountAfter(cells []string, i int) (float64, bool) {
	for off := 1; off <= e.cfg.ScanWindow && i+off < len(cells); off++ {
		v, ok := parseCurrency(cells[i+off])
		if ok && v > e.cfg.MinTotal {
			return v, true
		}
	}
	return 0, false
}

// flatten lays the grid out row-major, padding short rows so cell offsets
// match the sheet's rectangular shape.
func flatten(grid [][]string) []string {
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	out := make([]string, 0, width*len(grid))
	for _, row := range grid {
		out = append(out, row...)
		for j := len(row); j < width; j++ {
			out = append(out, "")
		}
	}
	return out
}

func parseCurrency(s string) (float64, bool) {
	s = strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(s))
	if infer.IsNull(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Run compares each vendor's clean record total with its billed total.
// Vendors with an invoice but no clean records are reported with a
// calculated total of zero. The overall status is ALERT when any vendor
// has a discrepancy.
func (e *Engine) Run(records []model.CanonicalRecord) Report {
	type sums struct {
		total, minutes float64
		count          int
	}
	byVendor := make(map[string]*sums)
	for _, r := range records {
		s, ok := byVendor[r.Vendor]
		if !ok {
			s = &sums{}
			byVendor[r.Vendor] = s
		}
		s.total += r.TotalCharge
		s.minutes += r.MinutesBilled
		s.count++
	}

	e.mu.Lock()
	for v := range e.totals {
		if _, ok := byVendor[v]; !ok {
			byVendor[v] = &sums{}
		}
	}
	totals := make(map[string]billed, len(e.totals))
	for k, v := range e.totals {
		totals[k] = v
	}
	e.mu.Unlock()

	report := Report{
		Vendors:       make(map[string]model.ReconciliationVendorResult, len(byVendor)),
		OverallStatus: model.OverallMatch,
	}
	for vendor, s := range byVendor {
		b := totals[vendor]
		variance := s.total - b.amount
		res := model.ReconciliationVendorResult{
			Vendor:            vendor,
			CalculatedTotal:   round2(s.total),
			CalculatedMinutes: round2(s.minutes),
			RecordCount:       s.count,
			BilledTotal:       round2(b.amount),
			BilledSheet:       b.sheet,
			Variance:          round2(variance),
		}
		switch {
		case b.amount == 0:
			res.Status = model.ReconcileNoInvoice
		default:
			pct := variance / b.amount * 100
			res.VariancePct = round2(pct)
			if math.Abs(pct) <= e.cfg.TolerancePct {
				res.Status = model.ReconcileMatch
			} else {
				res.Status = model.ReconcileDiscrepancy
				report.OverallStatus = model.OverallAlert
			}
		}
		report.Vendors[vendor] = res
		report.TotalVariance += math.Abs(variance)
	}
	report.TotalVariance = round2(report.TotalVariance)

	zap.L().Info("reconcile: complete",
		zap.Int("vendors", len(report.Vendors)),
		zap.String("overall", string(report.OverallStatus)),
		zap.Float64("total_variance", report.TotalVariance),
	)
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
