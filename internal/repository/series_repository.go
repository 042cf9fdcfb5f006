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

// SeriesRepository handles persistence of recurring slot templates.
type SeriesRepository struct {
	db *sqlx.DB
}

// NewSeriesRepository constructs the repository.
func NewSeriesRepository(db *sqlx.DB) *SeriesRepository {
	return &SeriesRepository{db: db}
}

// List returns series with course info, filtered by the provided criteria.
func (r *SeriesRepository) List(ctx context.Context, filter models.SeriesFilter) ([]models.SeriesDetail, int, error) {
	base := `FROM series s
LEFT JOIN courses c ON c.id = s.course_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Weekday > 0 {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(s.weekdays)", len(args)+1))
		args = append(args, filter.Weekday)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("s.end_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("s.start_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "s.start_date",
		"start_time": "s.start_time",
		"course":     "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.start_date"
	}
	order := normalizeOrder(filter.SortOrder)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT s.id, s.course_id, s.weekdays, s.start_time, s.duration_hours, s.capacity,
        s.start_date, s.end_date, s.booking_mode, s.status, s.created_at, s.updated_at,
        c.name AS course_name, c.category AS course_category
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var series []models.SeriesDetail
	if err := r.db.SelectContext(ctx, &series, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list series: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count series: %w", err)
	}
	return series, total, nil
}

// FindByID returns a series by its ID.
func (r *SeriesRepository) FindByID(ctx context.Context, id string) (*models.Series, error) {
	const query = `SELECT id, course_id, weekdays, start_time, duration_hours, capacity, start_date, end_date,
        booking_mode, status, created_at, updated_at FROM series WHERE id = $1`
	var series models.Series
	if err := r.db.GetContext(ctx, &series, query, id); err != nil {
		return nil, err
	}
	return &series, nil
}

// FindDetailByID returns a series with course info.
func (r *SeriesRepository) FindDetailByID(ctx context.Context, id string) (*models.SeriesDetail, error) {
	const query = `SELECT s.id, s.course_id, s.weekdays, s.start_time, s.duration_hours, s.capacity,
        s.start_date, s.end_date, s.booking_mode, s.status, s.created_at, s.updated_at,
        c.name AS course_name, c.category AS course_category
        FROM series s
        LEFT JOIN courses c ON c.id = s.course_id
        WHERE s.id = $1`
	var detail models.SeriesDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new series template.
func (r *SeriesRepository) Create(ctx context.Context, series *models.Series) error {
	if series.ID == "" {
		series.ID = uuid.NewString()
	}
	if series.Status == "" {
		series.Status = models.SeriesStatusActive
	}
	if series.BookingMode == "" {
		series.BookingMode = models.BookingModeOpen
	}
	now := time.Now().UTC()
	series.CreatedAt = now
	series.UpdatedAt = now
	const query = `INSERT INTO series (id, course_id, weekdays, start_time, duration_hours, capacity,
        start_date, end_date, booking_mode, status, created_at, updated_at)
        VALUES (:id, :course_id, :weekdays, :start_time, :duration_hours, :capacity,
        :start_date, :end_date, :booking_mode, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, series); err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	return nil
}

// Update rewrites the template definition. Session regeneration is the
// caller's responsibility; this layer only touches the series row.
func (r *SeriesRepository) Update(ctx context.Context, series *models.Series) error {
	series.UpdatedAt = time.Now().UTC()
	const query = `UPDATE series SET weekdays = :weekdays, start_time = :start_time,
        duration_hours = :duration_hours, capacity = :capacity, start_date = :start_date,
        end_date = :end_date, booking_mode = :booking_mode, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, series); err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	return nil
}

// UpdateStatus transitions the series lifecycle.
func (r *SeriesRepository) UpdateStatus(ctx context.Context, id string, status models.SeriesStatus) error {
	const query = `UPDATE series SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update series status: %w", err)
	}
	return nil
}
