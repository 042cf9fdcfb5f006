package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/repository"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type membershipStore interface {
	List(ctx context.Context, filter models.MembershipFilter) ([]models.MembershipDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Membership, error)
	CreateWithInvoice(ctx context.Context, membership *models.Membership, invoice *models.Invoice) error
	Activate(ctx context.Context, id string, activatedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error
	FindActiveByProfile(ctx context.Context, profileID string) (*models.Membership, error)
}

type membershipNotifier interface {
	NotifyMembershipActivated(to, fullName, kind string, endDate string)
}

// CreateMembershipRequest subscribes a profile to the club.
type CreateMembershipRequest struct {
	ProfileID string    `json:"profile_id" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=club saison"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Price     float64   `json:"price" validate:"required,gt=0"`
}

// MembershipService manages club subscriptions. A membership is billed
// like an enrollment and only turns active once its invoice is paid.
type MembershipService struct {
	repo      membershipStore
	profiles  enrollmentProfileReader
	notifier  membershipNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMembershipService constructs MembershipService.
func NewMembershipService(repo membershipStore, profiles enrollmentProfileReader, notifier membershipNotifier, validate *validator.Validate, logger *zap.Logger) *MembershipService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{repo: repo, profiles: profiles, notifier: notifier, validator: validate, logger: logger}
}

// List returns memberships with pagination metadata.
func (s *MembershipService) List(ctx context.Context, filter models.MembershipFilter) ([]models.MembershipDetail, *models.Pagination, error) {
	memberships, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list memberships")
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
	return memberships, pagination, nil
}

// Create subscribes the profile and issues the membership invoice in one
// transaction. Members may only subscribe themselves.
func (s *MembershipService) Create(ctx context.Context, req CreateMembershipRequest, callerProfileID string, isAdmin bool) (*models.Membership, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "La date de fin doit suivre la date de début")
	}
	if !isAdmin && req.ProfileID != callerProfileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	profile, err := s.profiles.FindByID(ctx, req.ProfileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	if existing, err := s.repo.FindActiveByProfile(ctx, profile.ID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Une adhésion est déjà active pour ce profil")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check memberships")
	}

	kind := models.MembershipKind(req.Kind)
	membership := &models.Membership{
		ProfileID: profile.ID,
		Kind:      kind,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Price:     req.Price,
	}
	invoice := &models.Invoice{
		Reference:   newInvoiceReference(time.Now().UTC()),
		Description: fmt.Sprintf("Adhésion %s", kind),
		Amount:      req.Price,
	}
	if err := s.repo.CreateWithInvoice(ctx, membership, invoice); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Référence de facture déjà utilisée, veuillez réessayer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create membership")
	}
	return membership, nil
}

// ActivatePaid turns a membership active after its invoice settles and
// mails the confirmation. Invoked from the payment approval side effects,
// so failures log instead of propagating.
func (s *MembershipService) ActivatePaid(ctx context.Context, id string, activatedAt time.Time) {
	membership, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("membership activation load failed", zap.String("membership_id", id), zap.Error(err))
		return
	}
	if membership.Status != models.MembershipStatusPending {
		return
	}
	if err := s.repo.Activate(ctx, id, activatedAt); err != nil {
		s.logger.Error("membership activation failed", zap.String("membership_id", id), zap.Error(err))
		return
	}
	if s.notifier == nil {
		return
	}
	profile, err := s.profiles.FindByID(ctx, membership.ProfileID)
	if err != nil {
		s.logger.Warn("membership activation profile load failed", zap.String("profile_id", membership.ProfileID), zap.Error(err))
		return
	}
	s.notifier.NotifyMembershipActivated(profile.Email, profile.FullName, string(membership.Kind), membership.EndDate.Format("02/01/2006"))
}

// Cancel retires a membership.
func (s *MembershipService) Cancel(ctx context.Context, id string) (*models.Membership, error) {
	membership, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	if membership.Status == models.MembershipStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "membership already cancelled")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.MembershipStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel membership")
	}
	membership.Status = models.MembershipStatusCancelled
	return membership, nil
}
