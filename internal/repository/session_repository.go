package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nataclub/natation-api/internal/models"
)

// SessionRepository handles persistence of materialized sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions filtered by the provided criteria.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base := `FROM sessions se`
	var conditions []string
	var args []interface{}

	if filter.SeriesID != "" {
		conditions = append(conditions, fmt.Sprintf("se.series_id = $%d", len(args)+1))
		args = append(args, filter.SeriesID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("se.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("se.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("se.date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("se.date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := normalizeOrder(filter.SortOrder)
	if filter.SortOrder == "" {
		order = "ASC"
	}
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT se.id, se.series_id, se.course_id, se.date, se.start_time, se.duration_hours,
        se.status, se.created_at, se.updated_at
        %s ORDER BY se.date %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, series_id, course_id, date, start_time, duration_hours, status, created_at, updated_at
        FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Insert persists one materialized session. Inserts are intentionally
// row-at-a-time so a failed date surfaces as a partial regeneration rather
// than rolling back the batch.
func (r *SessionRepository) Insert(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	const query = `INSERT INTO sessions (id, series_id, course_id, date, start_time, duration_hours, status, created_at, updated_at)
        VALUES (:id, :series_id, :course_id, :date, :start_time, :duration_hours, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// DeleteFutureBySeries removes sessions dated on or after the cutoff.
// Past sessions are immutable history and are never touched.
func (r *SessionRepository) DeleteFutureBySeries(ctx context.Context, seriesID string, cutoff time.Time) (int, error) {
	const query = `DELETE FROM sessions WHERE series_id = $1 AND date >= $2`
	res, err := r.db.ExecContext(ctx, query, seriesID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete future sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete future sessions: %w", err)
	}
	return int(affected), nil
}

// CancelFutureBySeries cancels every active session dated on or after the
// cutoff. Used when a whole series is retired.
func (r *SessionRepository) CancelFutureBySeries(ctx context.Context, seriesID string, cutoff time.Time) (int, error) {
	const query = `UPDATE sessions SET status = $3, updated_at = NOW()
        WHERE series_id = $1 AND date >= $2 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, seriesID, cutoff, models.SessionStatusCancelled, models.SessionStatusActive)
	if err != nil {
		return 0, fmt.Errorf("cancel future sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel future sessions: %w", err)
	}
	return int(affected), nil
}

// UpdateStatus transitions one occurrence (cancel a single date).
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// ListDatesBySeries returns the dates of non-deleted sessions for a series,
// used by idempotence checks and capacity accounting.
func (r *SessionRepository) ListDatesBySeries(ctx context.Context, seriesID string, from time.Time) ([]time.Time, error) {
	const query = `SELECT date FROM sessions WHERE series_id = $1 AND date >= $2 AND status <> $3 ORDER BY date ASC`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, seriesID, from, models.SessionStatusDeleted); err != nil {
		return nil, fmt.Errorf("list session dates: %w", err)
	}
	return dates, nil
}
