package pipeline

import (
	"context"

	"github.com/sells-group/baseline-cli/internal/db"
	"github.com/sells-group/baseline-cli/internal/model"
)

// PostgresLedger writes run ledgers into the ledger_records and
// reconciliation_results tables.
type PostgresLedger struct {
	pool db.Pool
}

// NewPostgresLedger creates a LedgerSink backed by pool.
func NewPostgresLedger(pool db.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// WriteLedger implements LedgerSink.
func (l *PostgresLedger) WriteLedger(ctx context.Context, runID string, records []model.CanonicalRecord, recon []model.ReconciliationVendorResult) error {
	return db.WriteLedger(ctx, l.pool, runID, records, recon)
}
