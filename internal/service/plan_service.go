package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type planRepository interface {
	List(ctx context.Context, filter models.PlanFilter) ([]models.Plan, int, error)
	FindByID(ctx context.Context, id string) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) error
}

// CreatePlanRequest adds a priced duration unit to the catalog.
type CreatePlanRequest struct {
	Name          string  `json:"name" validate:"required,min=2,max=120"`
	Category      string  `json:"category" validate:"required"`
	DurationHours int     `json:"duration_hours" validate:"required,min=1,max=2"`
	Weeks         *int    `json:"weeks" validate:"omitempty,min=1,max=52"`
	Price         float64 `json:"price" validate:"required,gt=0"`
	Public        bool    `json:"public"`
}

// PlanService manages the pricing catalog. Internal plans stay hidden
// from members; the enrollment resolver may still pick them for admins.
type PlanService struct {
	repo      planRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlanService constructs PlanService.
func NewPlanService(repo planRepository, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{repo: repo, validator: validate, logger: logger}
}

// List returns plans. Non-admin callers never see internal plans,
// whatever the filter says.
func (s *PlanService) List(ctx context.Context, filter models.PlanFilter, isAdmin bool) ([]models.Plan, *models.Pagination, error) {
	if !isAdmin {
		filter.IncludeInternal = false
	}
	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return plans, pagination, nil
}

// Detail returns one plan.
func (s *PlanService) Detail(ctx context.Context, id string, isAdmin bool) (*models.Plan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if !plan.Public && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	return plan, nil
}

// Create adds a plan to the catalog.
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (*models.Plan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	category := models.CourseCategory(req.Category)
	if !models.ValidCategory(category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Catégorie de cours inconnue")
	}
	plan := &models.Plan{
		Name:          req.Name,
		Category:      category,
		DurationHours: req.DurationHours,
		Weeks:         req.Weeks,
		Price:         req.Price,
		Public:        req.Public,
		Active:        true,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}
	return plan, nil
}
