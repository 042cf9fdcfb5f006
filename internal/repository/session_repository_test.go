package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/nataclub/natation-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryDeleteFutureBySeries(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	cutoff := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE series_id = $1 AND date >= $2")).
		WithArgs("ser-1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := repo.DeleteFutureBySeries(context.Background(), "ser-1", cutoff)
	require.NoError(t, err)
	require.Equal(t, 4, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.Session{
		SeriesID:      "ser-1",
		CourseID:      "course-1",
		Date:          time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC),
		StartTime:     "16:00",
		DurationHours: 2,
	}
	err := repo.Insert(context.Background(), session)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Equal(t, models.SessionStatusActive, session.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListDatesBySeries(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, time.January, 8, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date FROM sessions WHERE series_id = $1 AND date >= $2 AND status <> $3")).
		WithArgs("ser-1", from, models.SessionStatusDeleted).
		WillReturnRows(rows)

	dates, err := repo.ListDatesBySeries(context.Background(), "ser-1", from)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
