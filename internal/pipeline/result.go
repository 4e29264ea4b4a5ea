package pipeline

import (
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rotisserie/eris"

	"github.com/sells-group/baseline-cli/internal/cost"
	"github.com/sells-group/baseline-cli/internal/ingest"
	"github.com/sells-group/baseline-cli/internal/model"
	"github.com/sells-group/baseline-cli/internal/qa"
	"github.com/sells-group/baseline-cli/internal/reconcile"
	"github.com/sells-group/baseline-cli/internal/standardize"
)

// SheetStatus is what happened to one transaction table.
type SheetStatus string

const (
	SheetMapped   SheetStatus = "mapped"
	SheetSkipped  SheetStatus = "skipped"
	SheetPending  SheetStatus = "pending"
	SheetRejected SheetStatus = "rejected"
	SheetFailed   SheetStatus = "failed"
)

// SheetAudit records how one table was mapped.
type SheetAudit struct {
	Sheet           string                  `json:"sheet"`
	HeaderRow       int                     `json:"header_row"`
	Rows            int                     `json:"rows"`
	Source          model.MappingSource     `json:"source"`
	Signature       string                  `json:"signature"`
	Mapping         model.FieldMapping      `json:"mapping"`
	Assessment      model.MappingAssessment `json:"assessment"`
	OracleReasoning string                  `json:"oracle_reasoning,omitempty"`
	Status          SheetStatus             `json:"status"`
	Reason          string                  `json:"reason,omitempty"`
	PendingID       string                  `json:"pending_id,omitempty"`
	Records         int                     `json:"records"`
	Dropped         int                     `json:"dropped"`
}

// FileResult is the outcome of one input file.
type FileResult struct {
	Path         string                   `json:"path"`
	Vendor       string                   `json:"vendor"`
	InvoiceFound bool                     `json:"invoice_found"`
	Diagnostics  []ingest.SheetDiagnostic `json:"diagnostics,omitempty"`
	Sheets       []SheetAudit             `json:"sheets,omitempty"`
	Standardize  standardize.Stats        `json:"standardize"`
	Error        string                   `json:"error,omitempty"`

	err     error
	records []model.CanonicalRecord
}

// Result is the outcome of a batch run. Records holds the clean ledger;
// quarantined records are on QA.QuarantinedRecords.
type Result struct {
	RunID          string                    `json:"run_id"`
	StartedAt      time.Time                 `json:"started_at"`
	FinishedAt     time.Time                 `json:"finished_at"`
	Files          []FileResult              `json:"files"`
	Standardize    standardize.Stats         `json:"standardize"`
	Modality       standardize.ModalityStats `json:"modality"`
	Costs          cost.Stats                `json:"costs"`
	QA             qa.Stats                  `json:"qa"`
	Reconciliation reconcile.Report          `json:"reconciliation"`
	Records        []model.CanonicalRecord   `json:"-"`
}

// Err joins the per-file read errors, or returns nil.
func (r *Result) Err() error {
	var merr *multierror.Error
	for _, f := range r.Files {
		if f.err != nil {
			merr = multierror.Append(merr, eris.Wrapf(f.err, "pipeline: %s", f.Path))
		}
	}
	return merr.ErrorOrNil()
}

// CalculatedTotal is the sum of clean charges.
func (r *Result) CalculatedTotal() float64 {
	var total float64
	for _, rec := range r.Records {
		total += rec.TotalCharge
	}
	return total
}

// VendorResults returns the reconciliation rows ordered by vendor.
func (r *Result) VendorResults() []model.ReconciliationVendorResult {
	out := make([]model.ReconciliationVendorResult, 0, len(r.Reconciliation.Vendors))
	for _, v := range r.Reconciliation.Vendors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vendor < out[j].Vendor })
	return out
}

// Sheets returns every sheet audit across files.
func (r *Result) Sheets() []SheetAudit {
	var out []SheetAudit
	for _, f := range r.Files {
		out = append(out, f.Sheets...)
	}
	return out
}

// Summary reduces the result to the numbers stored on the run record.
func (r *Result) Summary() model.RunSummary {
	s := model.RunSummary{
		RecordsIn:       r.QA.TotalInput,
		RecordsOut:      r.QA.TotalOutput,
		DroppedRows:     r.Standardize.Dropped,
		Duplicates:      r.QA.DuplicatesRemoved,
		Flagged:         r.QA.OutliersFlagged,
		Quarantined:     r.QA.Quarantined,
		CalculatedTotal: r.CalculatedTotal(),
		Reconciliation:  r.Reconciliation.OverallStatus,
	}
	for _, f := range r.Files {
		if f.Error != "" {
			s.FilesFailed++
			continue
		}
		s.FilesProcessed++
		for _, sh := range f.Sheets {
			switch sh.Status {
			case SheetMapped:
				s.SheetsMapped++
			case SheetPending:
				s.SheetsPending++
			default:
				s.SheetsSkipped++
			}
		}
	}
	if err := r.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
