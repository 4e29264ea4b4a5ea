// Package qa removes duplicates, quarantines incomplete records and flags
// outliers across one run's standardized records.
package qa

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/baseline-cli/internal/mapping"
	"github.com/sells-group/baseline-cli/internal/model"
)

// Issue types. Counts in Stats are keyed by these; the record carries the
// detailed message.
const (
	IssueMissingLanguage   = "missing_language"
	IssueMissingDate       = "missing_date"
	IssueMissingCost       = "missing_cost"
	IssueZeroDuration      = "zero_duration"
	IssueExcessiveDuration = "excessive_duration"
	IssueRateOutlier       = "rate_outlier"
	IssueRateLow           = "rate_low"
	IssueRateHigh          = "rate_high"
)

// Config holds the QA thresholds.
type Config struct {
	RateZThreshold     float64 `yaml:"rate_z_threshold" mapstructure:"rate_z_threshold"`
	MaxDurationMinutes float64 `yaml:"max_duration_minutes" mapstructure:"max_duration_minutes"`
	MinRate            float64 `yaml:"min_rate" mapstructure:"min_rate"`
	MaxRate            float64 `yaml:"max_rate" mapstructure:"max_rate"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		RateZThreshold:     3.0,
		MaxDurationMinutes: 240,
		MinRate:            0.10,
		MaxRate:            5.00,
	}
}

// Stats summarizes one QA pass.
type Stats struct {
	TotalInput        int            `json:"total_records_input"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	OutliersFlagged   int            `json:"outliers_flagged"`
	Quarantined       int            `json:"quarantined"`
	TotalOutput       int            `json:"total_records_output"`
	MeanRate          float64        `json:"mean_rate"`
	StdRate           float64        `json:"std_rate"`
	IssueCounts       map[string]int `json:"issue_counts"`

	// QuarantinedRecords are the excluded records with their annotations,
	// kept for the audit trail only.
	QuarantinedRecords []model.CanonicalRecord `json:"-"`
}

// Engine runs the quality checks.
type Engine struct {
	cfg Config
}

// New creates an Engine. Zero thresholds take their defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RateZThreshold <= 0 {
		cfg.RateZThreshold = def.RateZThreshold
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = def.MaxDurationMinutes
	}
	if cfg.MinRate <= 0 {
		cfg.MinRate = def.MinRate
	}
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = def.MaxRate
	}
	return &Engine{cfg: cfg}
}

// Process returns the clean records and the pass statistics.
//
// The first pass drops duplicates (first occurrence wins) and quarantines
// records missing a language, a date or a charge for billed minutes. The
// rate population is then computed over the survivors only, so quarantined
// records never skew it, and the second pass flags duration and rate
// problems. Flagged records are kept with their confidence halved.
// Running Process on its own output changes nothing.
func (e *Engine) Process(records []model.CanonicalRecord) ([]model.CanonicalRecord, Stats) {
	stats := Stats{TotalInput: len(records), IssueCounts: map[string]int{}}

	seen := make(map[string]bool, len(records))
	survivors := make([]model.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		k := DuplicateKey(rec)
		if seen[k] {
			stats.DuplicatesRemoved++
			continue
		}
		seen[k] = true

		rec.RawColumns = maps.Clone(rec.RawColumns)
		if issues := quarantineIssues(rec); len(issues) > 0 {
			annotate(&rec, model.QAQuarantined, issues, stats.IssueCounts)
			stats.Quarantined++
			stats.QuarantinedRecords = append(stats.QuarantinedRecords, rec)
			continue
		}
		survivors = append(survivors, rec)
	}

	stats.MeanRate, stats.StdRate = rateStats(survivors)

	for i := range survivors {
		rec := &survivors[i]
		issues := e.flagIssues(*rec, stats.MeanRate, stats.StdRate)
		if len(issues) == 0 {
			rec.QAStatus = model.QAClean
			continue
		}
		annotate(rec, model.QAFlagged, issues, stats.IssueCounts)
		stats.OutliersFlagged++
	}

	stats.TotalOutput = len(survivors)
	zap.L().Info("qa: records processed",
		zap.Int("input", stats.TotalInput),
		zap.Int("duplicates", stats.DuplicatesRemoved),
		zap.Int("quarantined", stats.Quarantined),
		zap.Int("flagged", stats.OutliersFlagged),
		zap.Int("output", stats.TotalOutput),
	)
	return survivors, stats
}

type issue struct {
	kind   string
	detail string
}

func quarantineIssues(r model.CanonicalRecord) []issue {
	var out []issue
	if !r.HasLanguage() {
		out = append(out, issue{IssueMissingLanguage, "Missing Language"})
	}
	if r.Date.IsZero() {
		out = append(out, issue{IssueMissingDate, "Missing Date"})
	}
	if r.MinutesBilled > 0 && r.TotalCharge <= 0 {
		out = append(out, issue{IssueMissingCost, "Missing Cost"})
	}
	return out
}

func (e *Engine) flagIssues(r model.CanonicalRecord, mean, std float64) []issue {
	var out []issue
	if r.MinutesBilled <= 0 {
		out = append(out, issue{IssueZeroDuration, "Zero/Negative Duration"})
	}
	if r.MinutesBilled > e.cfg.MaxDurationMinutes {
		out = append(out, issue{IssueExcessiveDuration,
			fmt.Sprintf("Excessive Duration (> %g min)", e.cfg.MaxDurationMinutes)})
	}
	if r.MinutesBilled <= 0 || r.TotalCharge <= 0 {
		return out
	}
	if std > 0 {
		if z := math.Abs(r.RatePerMinute-mean) / std; z > e.cfg.RateZThreshold {
			out = append(out, issue{IssueRateOutlier, fmt.Sprintf("Statistical Rate Outlier (Z=%.1f)", z)})
		}
	}
	switch {
	case r.RatePerMinute < e.cfg.MinRate:
		out = append(out, issue{IssueRateLow, fmt.Sprintf("Rate suspiciously low ($%.2f/min)", r.RatePerMinute)})
	case r.RatePerMinute > e.cfg.MaxRate && !strings.Contains(strings.ToLower(r.Modality), "onsite"):
		out = append(out, issue{IssueRateHigh, fmt.Sprintf("Rate suspiciously high ($%.2f/min)", r.RatePerMinute)})
	}
	return out
}

// annotate records the outcome on r. Confidence is halved only the first
// time a record is flagged or quarantined.
func annotate(r *model.CanonicalRecord, status model.QAOutcome, issues []issue, counts map[string]int) {
	details := make([]string, len(issues))
	for i, is := range issues {
		details[i] = is.detail
		counts[is.kind]++
	}
	if r.RawColumns == nil {
		r.RawColumns = map[string]string{}
	}
	if _, done := r.RawColumns[model.AnnotationQAStatus]; !done {
		r.ConfidenceScore *= 0.5
	}
	r.QAStatus = status
	r.QAIssues = details
	r.RawColumns[model.AnnotationQAStatus] = string(status)
	r.RawColumns[model.AnnotationQAIssues] = strings.Join(details, "; ")
}

// rateStats returns the mean and sample standard deviation of the rate over
// records with both minutes and a charge.
func rateStats(records []model.CanonicalRecord) (float64, float64) {
	var rates []float64
	for _, r := range records {
		if r.MinutesBilled > 0 && r.TotalCharge > 0 {
			rates = append(rates, r.RatePerMinute)
		}
	}
	switch len(rates) {
	case 0:
		return 0, 0
	case 1:
		return rates[0], 0
	}
	return stat.MeanStdDev(rates, nil)
}

// idHints are raw column names that identify a transaction, most specific
// first.
var idHints = []string{
	"call id", "call-id", "session id", "job id", "transaction id", "interaction id", "id",
}

// DuplicateKey is the composite identity of a record. Two records with the
// same key are the same transaction.
func DuplicateKey(r model.CanonicalRecord) string {
	parts := []string{
		r.SourceFile,
		r.Vendor,
		r.Date.Format("2006-01-02"),
		strings.ToLower(strings.TrimSpace(r.Language)),
		strings.ToLower(strings.TrimSpace(r.Modality)),
		fmt.Sprintf("%.4f", r.MinutesBilled),
		fmt.Sprintf("%.4f", r.TotalCharge),
		stamp(r.StartTime),
		stamp(r.EndTime),
		rowID(r.RawColumns),
	}
	return strings.Join(parts, "\x1f")
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func rowID(raw map[string]string) string {
	if len(raw) == 0 {
		return ""
	}
	cols := make([]string, 0, len(raw))
	for k := range raw {
		if !strings.HasPrefix(k, "_") {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)

	norm := make(map[string]string, len(cols))
	for _, c := range cols {
		n := mapping.NormalizeHeader(c)
		if _, ok := norm[n]; !ok {
			norm[n] = strings.TrimSpace(raw[c])
		}
	}
	for _, h := range idHints {
		if v := norm[h]; v != "" {
			return h + "=" + v
		}
	}
	return ""
}
