package model

import (
	"math"
	"strings"
	"time"
)

// ModalityUnknown is recorded when the service type cannot be determined.
const ModalityUnknown = "UNKNOWN"

// Annotation keys written into RawColumns by the quality and cost checks.
const (
	AnnotationQAIssues   = "_qa_issues"
	AnnotationQAStatus   = "_qa_status"
	AnnotationCostStatus = "_cost_status"
)

// QAOutcome is the result of quality checks for one record.
type QAOutcome string

const (
	QAClean       QAOutcome = "CLEAN"
	QAFlagged     QAOutcome = "FLAGGED"
	QAQuarantined QAOutcome = "QUARANTINED"
)

// CanonicalRecord is one standardized billable transaction.
type CanonicalRecord struct {
	SourceFile      string            `json:"source_file"`
	Sheet           string            `json:"sheet,omitempty"`
	Vendor          string            `json:"vendor"`
	Date            time.Time         `json:"date"`
	Language        string            `json:"language"`
	Modality        string            `json:"modality"`
	MinutesBilled   float64           `json:"minutes_billed"`
	TotalCharge     float64           `json:"total_charge"`
	RatePerMinute   float64           `json:"rate_per_minute"`
	ConfidenceScore float64           `json:"confidence_score"`
	StartTime       *time.Time        `json:"start_time,omitempty"`
	EndTime         *time.Time        `json:"end_time,omitempty"`
	RawColumns      map[string]string `json:"raw_columns"`
	QAStatus        QAOutcome         `json:"qa_status,omitempty"`
	QAIssues        []string          `json:"qa_issues,omitempty"`
}

// NewRecord builds a record with non-negative amounts, the derived rate and
// full confidence.
func NewRecord(sourceFile, vendor string, date time.Time, language, modality string, minutes, charge float64, raw map[string]string) CanonicalRecord {
	if minutes < 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		minutes = 0
	}
	if charge < 0 || math.IsNaN(charge) || math.IsInf(charge, 0) {
		charge = 0
	}
	if modality == "" {
		modality = ModalityUnknown
	}
	if raw == nil {
		raw = map[string]string{}
	}
	return CanonicalRecord{
		SourceFile:      sourceFile,
		Vendor:          vendor,
		Date:            date,
		Language:        language,
		Modality:        modality,
		MinutesBilled:   minutes,
		TotalCharge:     charge,
		RatePerMinute:   RateFor(minutes, charge),
		ConfidenceScore: 1.0,
		RawColumns:      raw,
	}
}

// RateFor returns charge/minutes when minutes is positive, else 0.
func RateFor(minutes, charge float64) float64 {
	if minutes > 0 {
		return charge / minutes
	}
	return 0
}

// HasLanguage reports whether the record carries a usable language.
func (r CanonicalRecord) HasLanguage() bool {
	lang := strings.ToLower(strings.TrimSpace(r.Language))
	return lang != "" && lang != "unknown" && lang != "nan"
}

// ReconciliationStatus is the per-vendor reconciliation verdict.
type ReconciliationStatus string

const (
	ReconcileMatch       ReconciliationStatus = "MATCH"
	ReconcileDiscrepancy ReconciliationStatus = "DISCREPANCY"
	ReconcileNoInvoice   ReconciliationStatus = "NO_INVOICE_FOUND"
)

// OverallStatus summarizes reconciliation across vendors.
type OverallStatus string

const (
	OverallMatch OverallStatus = "MATCH"
	OverallAlert OverallStatus = "ALERT"
)

// ReconciliationVendorResult compares computed and billed totals for one vendor.
type ReconciliationVendorResult struct {
	Vendor            string               `json:"vendor"`
	CalculatedTotal   float64              `json:"calculated_total"`
	CalculatedMinutes float64              `json:"calculated_minutes"`
	RecordCount       int                  `json:"record_count"`
	BilledTotal       float64              `json:"billed_total"`
	BilledSheet       string               `json:"billed_sheet,omitempty"`
	Variance          float64              `json:"variance"`
	VariancePct       float64              `json:"variance_pct"`
	Status            ReconciliationStatus `json:"status"`
}

// RawTable is one sheet's data below its header row, without type coercion.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the position of column, or -1.
func (t RawTable) ColumnIndex(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns every value in column, or nil when the column is absent.
func (t RawTable) Column(column string) []string {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// Row returns row i as a column-name keyed map.
func (t RawTable) Row(i int) map[string]string {
	if i < 0 || i >= len(t.Rows) {
		return nil
	}
	out := make(map[string]string, len(t.Columns))
	for j, c := range t.Columns {
		if j < len(t.Rows[i]) {
			out[c] = t.Rows[i][j]
		} else {
			out[c] = ""
		}
	}
	return out
}

// RawSheet is an unfiltered sheet grid used for invoice total recovery.
type RawSheet struct {
	Name  string     `json:"name"`
	Cells [][]string `json:"cells"`
}
