package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type seriesRepository interface {
	List(ctx context.Context, filter models.SeriesFilter) ([]models.SeriesDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Series, error)
	FindDetailByID(ctx context.Context, id string) (*models.SeriesDetail, error)
	Create(ctx context.Context, series *models.Series) error
	Update(ctx context.Context, series *models.Series) error
	UpdateStatus(ctx context.Context, id string, status models.SeriesStatus) error
}

type sessionStore interface {
	Insert(ctx context.Context, session *models.Session) error
	DeleteFutureBySeries(ctx context.Context, seriesID string, cutoff time.Time) (int, error)
	CancelFutureBySeries(ctx context.Context, seriesID string, cutoff time.Time) (int, error)
}

type seriesCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type seriesEnrollmentCounter interface {
	CountActiveBySeries(ctx context.Context, seriesID string) (int, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateSeriesRequest describes a new recurring slot template.
type CreateSeriesRequest struct {
	CourseID      string    `json:"course_id" validate:"required"`
	Weekdays      []int     `json:"weekdays" validate:"required,min=1,dive,min=1,max=7"`
	StartTime     string    `json:"start_time" validate:"required,len=5"`
	DurationHours int       `json:"duration_hours" validate:"required,min=1,max=2"`
	Capacity      int       `json:"capacity" validate:"required,min=1"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required"`
	BookingMode   string    `json:"booking_mode" validate:"omitempty,oneof=OPEN ADMIN_ONLY"`
}

// UpdateSeriesRequest rewrites a template; future sessions regenerate.
type UpdateSeriesRequest struct {
	Weekdays      []int     `json:"weekdays" validate:"required,min=1,dive,min=1,max=7"`
	StartTime     string    `json:"start_time" validate:"required,len=5"`
	DurationHours int       `json:"duration_hours" validate:"required,min=1,max=2"`
	Capacity      int       `json:"capacity" validate:"required,min=1"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required"`
	BookingMode   string    `json:"booking_mode" validate:"omitempty,oneof=OPEN ADMIN_ONLY"`
}

// SeriesService orchestrates series templates and their materialized
// sessions.
type SeriesService struct {
	repo         seriesRepository
	sessions     sessionStore
	courses      seriesCourseReader
	enrollments  seriesEnrollmentCounter
	materializer *Materializer
	cache        scheduleCache
	cachePrefix  string
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSeriesService constructs SeriesService.
func NewSeriesService(repo seriesRepository, sessions sessionStore, courses seriesCourseReader, enrollments seriesEnrollmentCounter, materializer *Materializer, cache scheduleCache, cachePrefix string, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SeriesService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if materializer == nil {
		materializer = NewMaterializer(nil)
	}
	return &SeriesService{
		repo:         repo,
		sessions:     sessions,
		courses:      courses,
		enrollments:  enrollments,
		materializer: materializer,
		cache:        cache,
		cachePrefix:  cachePrefix,
		cacheTTL:     cacheTTL,
		validator:    validate,
		logger:       logger,
	}
}

// List returns series with pagination metadata and remaining capacity.
func (s *SeriesService) List(ctx context.Context, filter models.SeriesFilter) ([]models.SeriesDetail, *models.Pagination, error) {
	series, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list series")
	}
	for i := range series {
		series[i].CapacityRemaining = s.remaining(ctx, series[i].ID, series[i].Capacity)
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
	return series, pagination, nil
}

// Detail returns one series with course info and remaining capacity,
// served from cache when fresh.
func (s *SeriesService) Detail(ctx context.Context, id string) (*models.SeriesDetail, error) {
	key := fmt.Sprintf("%s:detail:%s", s.cachePrefix, id)
	if s.cache != nil {
		var cached models.SeriesDetail
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "series not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load series")
	}
	detail.CapacityRemaining = s.remaining(ctx, detail.ID, detail.Capacity)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("series cache set failed", zap.String("series_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// Create persists the template and materializes the full run of sessions.
// Insert failures do not roll anything back; the dates that failed come
// back in the result for a follow-up regeneration.
func (s *SeriesService) Create(ctx context.Context, req CreateSeriesRequest) (*models.Series, *models.RegenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid series payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "La date de fin doit suivre la date de début")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	series := &models.Series{
		CourseID:      course.ID,
		Weekdays:      toInt64Array(req.Weekdays),
		StartTime:     req.StartTime,
		DurationHours: req.DurationHours,
		Capacity:      req.Capacity,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		BookingMode:   models.BookingMode(req.BookingMode),
	}
	if err := s.repo.Create(ctx, series); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create series")
	}

	result := s.materialize(ctx, series, series.StartDate)
	s.invalidate(ctx)
	return series, result, nil
}

// Update rewrites the template and regenerates every future session.
// Sessions dated before today are history and stay untouched.
func (s *SeriesService) Update(ctx context.Context, id string, req UpdateSeriesRequest) (*models.Series, *models.RegenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid series payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "La date de fin doit suivre la date de début")
	}
	series, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "series not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load series")
	}
	if series.Status != models.SeriesStatusActive {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "series not active")
	}

	series.Weekdays = toInt64Array(req.Weekdays)
	series.StartTime = req.StartTime
	series.DurationHours = req.DurationHours
	series.Capacity = req.Capacity
	series.StartDate = req.StartDate
	series.EndDate = req.EndDate
	if req.BookingMode != "" {
		series.BookingMode = models.BookingMode(req.BookingMode)
	}
	if err := s.repo.Update(ctx, series); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update series")
	}

	result, err := s.Regenerate(ctx, series)
	if err != nil {
		return nil, nil, err
	}
	return series, result, nil
}

// Regenerate deletes future sessions and re-expands the template from
// today onward. Failed dates are reported, never rolled back.
func (s *SeriesService) Regenerate(ctx context.Context, series *models.Series) (*models.RegenerationResult, error) {
	cutoff := s.materializer.Today()
	deleted, err := s.sessions.DeleteFutureBySeries(ctx, series.ID, cutoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete future sessions")
	}

	result := s.materialize(ctx, series, cutoff)
	result.Deleted = deleted
	s.invalidate(ctx)
	return result, nil
}

// RegenerateByID loads the series and regenerates its future sessions.
func (s *SeriesService) RegenerateByID(ctx context.Context, id string) (*models.RegenerationResult, error) {
	series, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "series not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load series")
	}
	if series.Status != models.SeriesStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "series not active")
	}
	return s.Regenerate(ctx, series)
}

// Cancel retires the series and cancels its future sessions. Past
// sessions and their enrollments keep their history.
func (s *SeriesService) Cancel(ctx context.Context, id string) (*models.RegenerationResult, error) {
	series, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "series not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load series")
	}
	if series.Status == models.SeriesStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "series already cancelled")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.SeriesStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel series")
	}
	cancelled, err := s.sessions.CancelFutureBySeries(ctx, id, s.materializer.Today())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel future sessions")
	}
	s.invalidate(ctx)

	return &models.RegenerationResult{
		SeriesID: id,
		Deleted:  cancelled,
		Message:  "Série annulée",
	}, nil
}

// materialize expands the template from the given date and inserts one
// session per date, accumulating per-date failures.
func (s *SeriesService) materialize(ctx context.Context, series *models.Series, from time.Time) *models.RegenerationResult {
	result := &models.RegenerationResult{SeriesID: series.ID}
	for _, date := range s.materializer.Expand(series, from) {
		session := &models.Session{
			SeriesID:      series.ID,
			CourseID:      series.CourseID,
			Date:          date,
			StartTime:     series.StartTime,
			DurationHours: series.DurationHours,
		}
		if err := s.sessions.Insert(ctx, session); err != nil {
			s.logger.Error("session insert failed",
				zap.String("series_id", series.ID),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err))
			result.FailedDates = append(result.FailedDates, date.Format("2006-01-02"))
			continue
		}
		result.Created++
	}
	if result.Partial() {
		result.Message = "Régénération partielle: certaines dates ont échoué"
	} else {
		result.Message = "Séances générées"
	}
	return result
}

// remaining computes seats left for a series. A failed count fails open
// to the raw capacity so listings keep rendering.
func (s *SeriesService) remaining(ctx context.Context, seriesID string, capacity int) int {
	count, err := s.enrollments.CountActiveBySeries(ctx, seriesID)
	if err != nil {
		s.logger.Warn("capacity count failed", zap.String("series_id", seriesID), zap.Error(err))
		return capacity
	}
	remaining := capacity - count
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *SeriesService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, s.cachePrefix+":*"); err != nil {
		s.logger.Warn("series cache invalidation failed", zap.Error(err))
	}
}

func toInt64Array(values []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(values))
	for _, v := range values {
		out = append(out, int64(v))
	}
	return out
}
