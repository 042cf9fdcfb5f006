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

// PlanRepository handles persistence of pricing plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs the repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// List returns plans filtered by the provided criteria. Internal plans are
// excluded unless IncludeInternal is set.
func (r *PlanRepository) List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, int, error) {
	base := `FROM plans p`
	conditions := []string{"p.active = TRUE"}
	var args []interface{}

	if !filter.IncludeInternal {
		conditions = append(conditions, "p.public = TRUE")
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("p.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.DurationHours > 0 {
		conditions = append(conditions, fmt.Sprintf("p.duration_hours = $%d", len(args)+1))
		args = append(args, filter.DurationHours)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"price":          "p.price",
		"duration_hours": "p.duration_hours",
		"name":           "p.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "p.price"
	}
	order := normalizeOrder(filter.SortOrder)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT p.id, p.name, p.category, p.duration_hours, p.weeks, p.price, p.public, p.active, p.created_at, p.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var plans []models.Plan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}
	return plans, total, nil
}

// FindByID returns a plan by its ID.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.Plan, error) {
	const query = `SELECT id, name, category, duration_hours, weeks, price, public, active, created_at, updated_at
        FROM plans WHERE id = $1`
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindByDurationAndCategory resolves the plan for a (duration, category)
// pair. sql.ErrNoRows is the "no valid plan" hard stop for callers.
func (r *PlanRepository) FindByDurationAndCategory(ctx context.Context, durationHours int, category models.CourseCategory, includeInternal bool) (*models.Plan, error) {
	query := `SELECT id, name, category, duration_hours, weeks, price, public, active, created_at, updated_at
        FROM plans WHERE duration_hours = $1 AND category = $2 AND active = TRUE`
	if !includeInternal {
		query += ` AND public = TRUE`
	}
	query += ` ORDER BY price ASC LIMIT 1`
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, query, durationHours, category); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Create persists a new plan.
func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	const query = `INSERT INTO plans (id, name, category, duration_hours, weeks, price, public, active, created_at, updated_at)
        VALUES (:id, :name, :category, :duration_hours, :weeks, :price, :public, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}
