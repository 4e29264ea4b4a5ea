package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/baseline-cli/internal/model"
)

// Output file names written by WriteOutputs.
const (
	LedgerJSONFile = "ledger.json"
	LedgerCSVFile  = "ledger.csv"
	LedgerXLSXFile = "ledger.xlsx"
	AuditFile      = "audit.json"
	ReportFile     = "report.md"
)

const dateLayout = "2006-01-02"

// ledgerRow is the flat export shape of a CanonicalRecord.
type ledgerRow struct {
	SourceFile      string  `csv:"Source_File"`
	Sheet           string  `csv:"Sheet"`
	Vendor          string  `csv:"Vendor"`
	Date            string  `csv:"Date"`
	Language        string  `csv:"Language"`
	Modality        string  `csv:"Modality"`
	MinutesBilled   float64 `csv:"Minutes_Billed"`
	TotalCharge     float64 `csv:"Total_Charge"`
	RatePerMinute   float64 `csv:"Rate_Per_Minute"`
	ConfidenceScore float64 `csv:"Confidence_Score"`
	StartTime       string  `csv:"Start_Time,omitempty"`
	EndTime         string  `csv:"End_Time,omitempty"`
	QAStatus        string  `csv:"QA_Status"`
	QAIssues        string  `csv:"QA_Issues,omitempty"`
}

var ledgerHeader = []string{
	"Source_File", "Sheet", "Vendor", "Date", "Language", "Modality", "Minutes_Billed",
	"Total_Charge", "Rate_Per_Minute", "Confidence_Score", "Start_Time", "End_Time",
	"QA_Status", "QA_Issues",
}

func toLedgerRow(r model.CanonicalRecord) ledgerRow {
	return ledgerRow{
		SourceFile:      r.SourceFile,
		Sheet:           r.Sheet,
		Vendor:          r.Vendor,
		Date:            r.Date.Format(dateLayout),
		Language:        r.Language,
		Modality:        r.Modality,
		MinutesBilled:   r.MinutesBilled,
		TotalCharge:     r.TotalCharge,
		RatePerMinute:   r.RatePerMinute,
		ConfidenceScore: r.ConfidenceScore,
		StartTime:       formatStamp(r.StartTime),
		EndTime:         formatStamp(r.EndTime),
		QAStatus:        string(r.QAStatus),
		QAIssues:        strings.Join(r.QAIssues, "; "),
	}
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteLedgerJSON writes records as an indented JSON array.
func WriteLedgerJSON(path string, records []model.CanonicalRecord) error {
	if records == nil {
		records = []model.CanonicalRecord{}
	}
	return writeJSON(path, records)
}

// WriteLedgerCSV writes records as CSV with one header row.
func WriteLedgerCSV(path string, records []model.CanonicalRecord) error {
	rows := make([]ledgerRow, len(records))
	for i, r := range records {
		rows[i] = toLedgerRow(r)
	}
	var data []byte
	if len(rows) == 0 {
		data = []byte(strings.Join(ledgerHeader, ",") + "\n")
	} else {
		var err error
		data, err = csvutil.Marshal(rows)
		if err != nil {
			return eris.Wrap(err, "pipeline: encode ledger csv")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}

// WriteLedgerXLSX writes a workbook with a Ledger sheet and a Reconciliation
// sheet.
func WriteLedgerXLSX(path string, records []model.CanonicalRecord, recon []model.ReconciliationVendorResult) error {
	f := xlsx.NewFile()

	ledger, err := f.AddSheet("Ledger")
	if err != nil {
		return eris.Wrap(err, "pipeline: add ledger sheet")
	}
	addStringRow(ledger, ledgerHeader)
	for _, r := range records {
		lr := toLedgerRow(r)
		row := ledger.AddRow()
		for _, s := range []string{lr.SourceFile, lr.Sheet, lr.Vendor} {
			row.AddCell().SetString(s)
		}
		row.AddCell().SetDate(r.Date)
		row.AddCell().SetString(lr.Language)
		row.AddCell().SetString(lr.Modality)
		for _, v := range []float64{lr.MinutesBilled, lr.TotalCharge, lr.RatePerMinute, lr.ConfidenceScore} {
			row.AddCell().SetFloat(v)
		}
		for _, s := range []string{lr.StartTime, lr.EndTime, lr.QAStatus, lr.QAIssues} {
			row.AddCell().SetString(s)
		}
	}

	sheet, err := f.AddSheet("Reconciliation")
	if err != nil {
		return eris.Wrap(err, "pipeline: add reconciliation sheet")
	}
	addStringRow(sheet, []string{
		"Vendor", "Calculated_Total", "Calculated_Minutes", "Records",
		"Billed_Total", "Billed_Sheet", "Variance", "Variance_Pct", "Status",
	})
	for _, v := range recon {
		row := sheet.AddRow()
		row.AddCell().SetString(v.Vendor)
		row.AddCell().SetFloat(v.CalculatedTotal)
		row.AddCell().SetFloat(v.CalculatedMinutes)
		row.AddCell().SetInt(v.RecordCount)
		row.AddCell().SetFloat(v.BilledTotal)
		row.AddCell().SetString(v.BilledSheet)
		row.AddCell().SetFloat(v.Variance)
		row.AddCell().SetFloat(v.VariancePct)
		row.AddCell().SetString(string(v.Status))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// audit is the JSON shape of the run audit file.
type audit struct {
	*Result
	Summary     model.RunSummary        `json:"summary"`
	Quarantined []model.CanonicalRecord `json:"quarantined_records"`
}

// WriteAudit writes the per-file, per-sheet audit trail of a run, including
// quarantined records.
func WriteAudit(path string, r *Result) error {
	quarantined := r.QA.QuarantinedRecords
	if quarantined == nil {
		quarantined = []model.CanonicalRecord{}
	}
	return writeJSON(path, audit{Result: r, Summary: r.Summary(), Quarantined: quarantined})
}

// WriteOutputs writes the ledger in every format, the audit and the report
// into dir and returns the written paths.
func WriteOutputs(dir string, r *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}
	recon := r.VendorResults()
	steps := []struct {
		name  string
		write func(path string) error
	}{
		{LedgerJSONFile, func(p string) error { return WriteLedgerJSON(p, r.Records) }},
		{LedgerCSVFile, func(p string) error { return WriteLedgerCSV(p, r.Records) }},
		{LedgerXLSXFile, func(p string) error { return WriteLedgerXLSX(p, r.Records, recon) }},
		{AuditFile, func(p string) error { return WriteAudit(p, r) }},
		{ReportFile, func(p string) error {
			return writeFile(p, []byte(FormatReport(r)))
		}},
	}

	paths := make([]string, 0, len(steps))
	for _, s := range steps {
		p := filepath.Join(dir, s.name)
		if err := s.write(p); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "pipeline: encode %s", filepath.Base(path))
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}
