package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/baseline-cli/internal/model"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "ledger_records", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, "ledger_records", []string{"a", "b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, []string{"a"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "ledger_records", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO ledger_records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteLedger(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []model.CanonicalRecord{
		model.NewRecord("a.xlsx", "acme", day, "Spanish", "OPI", 10, 8, nil),
		model.NewRecord("a.xlsx", "acme", day, "French", "OPI", 5, 4, nil),
	}
	recon := []model.ReconciliationVendorResult{
		{Vendor: "acme", CalculatedTotal: 12, BilledTotal: 12, Status: model.ReconcileMatch},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ledger_records WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM reconciliation_results WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, ledgerColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"reconciliation_results"}, reconciliationColumns).WillReturnResult(1)
	mock.ExpectCommit()

	require.NoError(t, WriteLedger(context.Background(), mock, "run-1", records, recon))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteLedger_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []model.CanonicalRecord{model.NewRecord("a.xlsx", "acme", day, "Spanish", "OPI", 10, 8, nil)}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ledger_records`).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM reconciliation_results`).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_records"}, ledgerColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err = WriteLedger(context.Background(), mock, "run-1", records, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO ledger_records")
	assert.NoError(t, mock.ExpectationsWereMet())
}
