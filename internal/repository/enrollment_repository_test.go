package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/nataclub/natation-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateWithInvoice(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO invoices").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{
		ProfileID:    "prof-1",
		CourseID:     "course-1",
		SessionID:    "sess-1",
		SeriesID:     "ser-1",
		PlanID:       "plan-1",
		StartDate:    time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC),
		SelectedSlot: models.SlotBoth,
	}
	invoice := &models.Invoice{
		Reference:   "FAC-2026-0001",
		Description: "Natation 2h",
		Amount:      3000,
	}
	err := repo.CreateWithInvoice(context.Background(), enrollment, invoice)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, enrollment.ID, *invoice.EnrollmentID)
	require.Equal(t, "prof-1", invoice.ProfileID)
	require.Equal(t, models.InvoiceStatusPending, invoice.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithInvoiceDuplicate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: constraintActiveEnrollment})
	mock.ExpectRollback()

	err := repo.CreateWithInvoice(context.Background(), &models.Enrollment{
		ProfileID: "prof-1",
		CourseID:  "course-1",
		SessionID: "sess-1",
		PlanID:    "plan-1",
	}, &models.Invoice{Reference: "FAC-2026-0002", Amount: 1800})
	require.ErrorIs(t, err, ErrDuplicateEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCancelWithInvoice(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, cancelled_at = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE invoices SET status = $2, updated_at = $3 WHERE enrollment_id = $1 AND status = $4")).
		WithArgs("enr-1", models.InvoiceStatusCancelled, sqlmock.AnyArg(), models.InvoiceStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CancelWithInvoice(context.Background(), "enr-1", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCountActiveBySeries(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(7)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ser-1", models.EnrollmentStatusActive, models.SessionStatusActive).
		WillReturnRows(rows)

	count, err := repo.CountActiveBySeries(context.Background(), "ser-1")
	require.NoError(t, err)
	require.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
