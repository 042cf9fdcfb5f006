package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newInvoiceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvoiceRepositoryTryAcquirePDFLock(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	lockQuery := regexp.QuoteMeta("UPDATE invoices SET pdf_generating = TRUE")

	mock.ExpectExec(lockQuery).WithArgs("inv-1").WillReturnResult(sqlmock.NewResult(0, 1))
	acquired, err := repo.TryAcquirePDFLock(context.Background(), "inv-1")
	require.NoError(t, err)
	require.True(t, acquired)

	// Second caller sees the flag already set and must back off.
	mock.ExpectExec(lockQuery).WithArgs("inv-1").WillReturnResult(sqlmock.NewResult(0, 0))
	acquired, err = repo.TryAcquirePDFLock(context.Background(), "inv-1")
	require.NoError(t, err)
	require.False(t, acquired)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositorySetPDFPathClearsLock(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET pdf_path = $2, pdf_generating = FALSE")).
		WithArgs("inv-1", "receipts/inv-1.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetPDFPath(context.Background(), "inv-1", "receipts/inv-1.pdf")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryReleasePDFLock(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewInvoiceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET pdf_generating = FALSE")).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ReleasePDFLock(context.Background(), "inv-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newInvoiceRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	approvedAt := time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE invoices SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Approve(context.Background(), "pay-1", "admin-1", approvedAt)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
