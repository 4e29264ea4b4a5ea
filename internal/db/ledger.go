package db

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/baseline-cli/internal/model"
)

// LedgerMigration creates the tables the ledger export writes to.
const LedgerMigration = `
CREATE TABLE IF NOT EXISTS ledger_records (
	run_id           TEXT NOT NULL,
	source_file      TEXT NOT NULL,
	sheet            TEXT,
	vendor           TEXT NOT NULL,
	service_date     DATE NOT NULL,
	language         TEXT NOT NULL,
	modality         TEXT NOT NULL,
	minutes_billed   DOUBLE PRECISION NOT NULL,
	total_charge     DOUBLE PRECISION NOT NULL,
	rate_per_minute  DOUBLE PRECISION NOT NULL,
	confidence_score DOUBLE PRECISION NOT NULL,
	qa_status        TEXT NOT NULL,
	qa_issues        TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_records_run_id ON ledger_records(run_id);
CREATE INDEX IF NOT EXISTS idx_ledger_records_vendor ON ledger_records(vendor);

CREATE TABLE IF NOT EXISTS reconciliation_results (
	run_id           TEXT NOT NULL,
	vendor           TEXT NOT NULL,
	calculated_total DOUBLE PRECISION NOT NULL,
	billed_total     DOUBLE PRECISION NOT NULL,
	variance         DOUBLE PRECISION NOT NULL,
	variance_pct     DOUBLE PRECISION NOT NULL,
	status           TEXT NOT NULL,
	PRIMARY KEY (run_id, vendor)
);
`

var ledgerColumns = []string{
	"run_id", "source_file", "sheet", "vendor", "service_date", "language", "modality",
	"minutes_billed", "total_charge", "rate_per_minute", "confidence_score", "qa_status", "qa_issues",
}

var reconciliationColumns = []string{
	"run_id", "vendor", "calculated_total", "billed_total", "variance", "variance_pct", "status",
}

// WriteLedger replaces the ledger rows and reconciliation results of runID
// in one transaction.
func WriteLedger(ctx context.Context, pool Pool, runID string, records []model.CanonicalRecord, recon []model.ReconciliationVendorResult) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "db: ledger: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM ledger_records WHERE run_id = $1`, runID); err != nil {
		return eris.Wrap(err, "db: ledger: clear records")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM reconciliation_results WHERE run_id = $1`, runID); err != nil {
		return eris.Wrap(err, "db: ledger: clear reconciliation")
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		status := r.QAStatus
		if status == "" {
			status = model.QAClean
		}
		rows = append(rows, []any{
			runID, r.SourceFile, r.Sheet, r.Vendor, r.Date, r.Language, r.Modality,
			r.MinutesBilled, r.TotalCharge, r.RatePerMinute, r.ConfidenceScore,
			string(status), strings.Join(r.QAIssues, "; "),
		})
	}
	n, err := CopyFrom(ctx, tx, "ledger_records", ledgerColumns, rows)
	if err != nil {
		return err
	}

	reconRows := make([][]any, 0, len(recon))
	for _, v := range recon {
		reconRows = append(reconRows, []any{
			runID, v.Vendor, v.CalculatedTotal, v.BilledTotal, v.Variance, v.VariancePct, string(v.Status),
		})
	}
	if _, err := CopyFrom(ctx, tx, "reconciliation_results", reconciliationColumns, reconRows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "db: ledger: commit")
	}
	zap.L().Info("db: ledger written",
		zap.String("run_id", runID),
		zap.Int64("records", n),
		zap.Int("vendors", len(recon)),
	)
	return nil
}
