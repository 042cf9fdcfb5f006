package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type profileRepository interface {
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	FindByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}

// CreateProfileRequest registers a swimmer. The linked account is
// optional: parents register children under their own login.
type CreateProfileRequest struct {
	UserID    *string    `json:"user_id"`
	FullName  string     `json:"full_name" validate:"required,min=2,max=150"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     string     `json:"phone" validate:"omitempty,max=30"`
	BirthDate *time.Time `json:"birth_date"`
}

// UpdateProfileRequest edits contact details.
type UpdateProfileRequest struct {
	FullName  string     `json:"full_name" validate:"required,min=2,max=150"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     string     `json:"phone" validate:"omitempty,max=30"`
	BirthDate *time.Time `json:"birth_date"`
}

// ProfileService manages swimmer profiles.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// List returns profiles matching the filter with pagination metadata.
func (s *ProfileService) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
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
	return profiles, pagination, nil
}

// Detail returns one profile. Members only see their own.
func (s *ProfileService) Detail(ctx context.Context, id, callerUserID string, isAdmin bool) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if !isAdmin && (profile.UserID == nil || *profile.UserID != callerUserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return profile, nil
}

// FindByUser resolves the profile behind an authenticated account.
func (s *ProfileService) FindByUser(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Aucun profil nageur n'est associé à ce compte")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// Create registers a profile. Non-admin callers can only attach the
// profile to their own account.
func (s *ProfileService) Create(ctx context.Context, req CreateProfileRequest, callerUserID string, isAdmin bool) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if !isAdmin {
		if req.UserID != nil && *req.UserID != callerUserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "")
		}
		req.UserID = &callerUserID
	}
	profile := &models.Profile{
		UserID:    req.UserID,
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create profile")
	}
	return profile, nil
}

// Update edits a profile's contact details.
func (s *ProfileService) Update(ctx context.Context, id string, req UpdateProfileRequest, callerUserID string, isAdmin bool) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	profile, err := s.Detail(ctx, id, callerUserID, isAdmin)
	if err != nil {
		return nil, err
	}

	profile.FullName = req.FullName
	profile.Email = req.Email
	profile.Phone = req.Phone
	profile.BirthDate = req.BirthDate
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return profile, nil
}
