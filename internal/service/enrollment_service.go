package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/repository"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	CreateWithInvoice(ctx context.Context, enrollment *models.Enrollment, invoice *models.Invoice) error
	CancelWithInvoice(ctx context.Context, id string, cancelledAt time.Time) error
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type enrollmentSeriesReader interface {
	FindByID(ctx context.Context, id string) (*models.Series, error)
}

type planResolver interface {
	FindByDurationAndCategory(ctx context.Context, durationHours int, category models.CourseCategory, includeInternal bool) (*models.Plan, error)
}

type enrollmentProfileReader interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

type enrollmentNotifier interface {
	NotifyEnrollmentConfirmed(to, fullName, courseName, reference string, amount float64)
}

type receiptScheduler interface {
	EnqueueRender(invoiceID string)
}

// EnrollmentQuoteRequest asks what an enrollment would cost before
// committing to it.
type EnrollmentQuoteRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	FirstHalf  bool   `json:"first_half"`
	SecondHalf bool   `json:"second_half"`
}

// EnrollmentQuote is the priced resolution of a slot selection.
type EnrollmentQuote struct {
	SessionID     string               `json:"session_id"`
	Slot          models.SlotSelection `json:"slot"`
	DurationHours int                  `json:"duration_hours"`
	TimeRange     string               `json:"time_range"`
	PlanID        string               `json:"plan_id"`
	PlanName      string               `json:"plan_name"`
	Amount        float64              `json:"amount"`
}

// CreateEnrollmentRequest enrolls a profile into a session.
type CreateEnrollmentRequest struct {
	ProfileID  string `json:"profile_id" validate:"required"`
	SessionID  string `json:"session_id" validate:"required"`
	FirstHalf  bool   `json:"first_half"`
	SecondHalf bool   `json:"second_half"`
}

// EnrollmentService orchestrates slot resolution, plan pricing and the
// enrollment+invoice transaction. Capacity never blocks a booking here;
// remaining seats are a display concern of the series listing.
type EnrollmentService struct {
	repo      enrollmentStore
	sessions  sessionReader
	series    enrollmentSeriesReader
	courses   seriesCourseReader
	plans     planResolver
	profiles  enrollmentProfileReader
	resolver  *SlotResolver
	notifier  enrollmentNotifier
	receipts  receiptScheduler
	cache     scheduleCache
	cacheKey  string
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, sessions sessionReader, series enrollmentSeriesReader, courses seriesCourseReader, plans planResolver, profiles enrollmentProfileReader, resolver *SlotResolver, notifier enrollmentNotifier, cache scheduleCache, cachePrefix string, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewSlotResolver()
	}
	return &EnrollmentService{
		repo:      repo,
		sessions:  sessions,
		series:    series,
		courses:   courses,
		plans:     plans,
		profiles:  profiles,
		resolver:  resolver,
		notifier:  notifier,
		cache:     cache,
		cacheKey:  cachePrefix,
		validator: validate,
		logger:    logger,
	}
}

// WithReceiptJobs attaches the background receipt renderer.
func (s *EnrollmentService) WithReceiptJobs(receipts receiptScheduler) *EnrollmentService {
	s.receipts = receipts
	return s
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Detail returns one enrollment with its joined context.
func (s *EnrollmentService) Detail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Quote prices a slot selection without creating anything. Admin and
// member flows run through the same resolution.
func (s *EnrollmentService) Quote(ctx context.Context, req EnrollmentQuoteRequest, isAdmin bool) (*EnrollmentQuote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quote payload")
	}
	resolution, err := s.resolve(ctx, req.SessionID, req.FirstHalf, req.SecondHalf, isAdmin)
	if err != nil {
		return nil, err
	}
	return &EnrollmentQuote{
		SessionID:     req.SessionID,
		Slot:          resolution.slot,
		DurationHours: resolution.duration,
		TimeRange:     resolution.timeRange,
		PlanID:        resolution.plan.ID,
		PlanName:      resolution.plan.Name,
		Amount:        resolution.plan.Price,
	}, nil
}

// Create enrolls the profile and issues the invoice in one transaction,
// then fires the confirmation email without blocking the response.
func (s *EnrollmentService) Create(ctx context.Context, req CreateEnrollmentRequest, isAdmin bool) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	profile, err := s.profiles.FindByID(ctx, req.ProfileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	resolution, err := s.resolve(ctx, req.SessionID, req.FirstHalf, req.SecondHalf, isAdmin)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		ProfileID:    profile.ID,
		CourseID:     resolution.course.ID,
		SessionID:    resolution.session.ID,
		SeriesID:     resolution.series.ID,
		PlanID:       resolution.plan.ID,
		StartDate:    resolution.session.Date,
		SelectedSlot: resolution.slot,
	}
	invoice := &models.Invoice{
		Reference:   newInvoiceReference(time.Now().UTC()),
		Description: fmt.Sprintf("%s - %s", resolution.course.Name, resolution.plan.Name),
		Amount:      resolution.plan.Price,
	}
	if err := s.repo.CreateWithInvoice(ctx, enrollment, invoice); err != nil {
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		}
		if errors.Is(err, repository.ErrDuplicateReference) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Référence de facture déjà utilisée, veuillez réessayer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.receipts != nil {
		s.receipts.EnqueueRender(invoice.ID)
	}
	if s.notifier != nil {
		s.notifier.NotifyEnrollmentConfirmed(profile.Email, profile.FullName, resolution.course.Name, invoice.Reference, invoice.Amount)
	}
	s.invalidate(ctx)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Cancel marks the enrollment cancelled and voids its pending invoice.
// Members may only cancel their own enrollments.
func (s *EnrollmentService) Cancel(ctx context.Context, id, callerProfileID string, isAdmin bool) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !isAdmin && enrollment.ProfileID != callerProfileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment not active")
	}
	if err := s.repo.CancelWithInvoice(ctx, id, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	s.invalidate(ctx)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

type slotResolution struct {
	session   *models.Session
	series    *models.Series
	course    *models.Course
	plan      *models.Plan
	slot      models.SlotSelection
	duration  int
	timeRange string
}

// resolve walks session -> series -> course and prices the selection
// against the plan catalog. A missing plan is a hard stop, never a guess.
func (s *EnrollmentService) resolve(ctx context.Context, sessionID string, first, second, isAdmin bool) (*slotResolution, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status != models.SessionStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Cette séance n'est plus disponible")
	}
	series, err := s.series.FindByID(ctx, session.SeriesID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "series not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load series")
	}
	if series.Status != models.SeriesStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Cette séance n'est plus disponible")
	}
	if series.BookingMode == models.BookingModeAdminOnly && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Réservation gérée par l'administration")
	}

	slot, duration, err := s.resolver.Resolve(first, second, isAdmin)
	if err != nil {
		return nil, err
	}
	if duration > series.DurationHours {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Cette séance ne couvre pas deux heures")
	}

	course, err := s.courses.FindByID(ctx, series.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	plan, err := s.plans.FindByDurationAndCategory(ctx, duration, course.Category, isAdmin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNoValidPlan, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve plan")
	}

	return &slotResolution{
		session:   session,
		series:    series,
		course:    course,
		plan:      plan,
		slot:      slot,
		duration:  duration,
		timeRange: s.resolver.TimeRange(series.StartTime, slot),
	}, nil
}

func (s *EnrollmentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, s.cacheKey+":*"); err != nil {
		s.logger.Warn("series cache invalidation failed", zap.Error(err))
	}
}

// newInvoiceReference builds a FAC-YYYY-XXXXXXXX reference. The random
// suffix keeps references unguessable; the unique index catches the
// astronomically rare collision.
func newInvoiceReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("FAC-%d-%s", now.Year(), suffix)
}
