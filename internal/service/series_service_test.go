package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
)

type mockSeriesRepo struct {
	series  map[string]models.Series
	created *models.Series
	updated *models.Series
	status  map[string]models.SeriesStatus
}

func (m *mockSeriesRepo) List(ctx context.Context, filter models.SeriesFilter) ([]models.SeriesDetail, int, error) {
	var out []models.SeriesDetail
	for _, s := range m.series {
		out = append(out, models.SeriesDetail{Series: s})
	}
	return out, len(out), nil
}

func (m *mockSeriesRepo) FindByID(ctx context.Context, id string) (*models.Series, error) {
	if s, ok := m.series[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSeriesRepo) FindDetailByID(ctx context.Context, id string) (*models.SeriesDetail, error) {
	if s, ok := m.series[id]; ok {
		return &models.SeriesDetail{Series: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSeriesRepo) Create(ctx context.Context, series *models.Series) error {
	if m.series == nil {
		m.series = make(map[string]models.Series)
	}
	if series.ID == "" {
		series.ID = "new-series"
	}
	series.Status = models.SeriesStatusActive
	m.series[series.ID] = *series
	m.created = series
	return nil
}

func (m *mockSeriesRepo) Update(ctx context.Context, series *models.Series) error {
	m.series[series.ID] = *series
	m.updated = series
	return nil
}

func (m *mockSeriesRepo) UpdateStatus(ctx context.Context, id string, status models.SeriesStatus) error {
	if m.status == nil {
		m.status = make(map[string]models.SeriesStatus)
	}
	m.status[id] = status
	if s, ok := m.series[id]; ok {
		s.Status = status
		m.series[id] = s
	}
	return nil
}

type mockSessionStore struct {
	inserted  []models.Session
	deleted   int
	cancelled int
	failDates map[string]bool
}

func (m *mockSessionStore) Insert(ctx context.Context, session *models.Session) error {
	if m.failDates[session.Date.Format("2006-01-02")] {
		return errors.New("insert failed")
	}
	m.inserted = append(m.inserted, *session)
	return nil
}

func (m *mockSessionStore) DeleteFutureBySeries(ctx context.Context, seriesID string, cutoff time.Time) (int, error) {
	return m.deleted, nil
}

func (m *mockSessionStore) CancelFutureBySeries(ctx context.Context, seriesID string, cutoff time.Time) (int, error) {
	return m.cancelled, nil
}

type mockCourseReader struct{}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Course{ID: id, Name: "Natation adultes", Category: models.CategoryNatation, Active: true}, nil
}

type mockEnrollmentCounter struct {
	count int
	err   error
}

func (m *mockEnrollmentCounter) CountActiveBySeries(ctx context.Context, seriesID string) (int, error) {
	return m.count, m.err
}

func newSeriesService(repo *mockSeriesRepo, sessions *mockSessionStore, counter *mockEnrollmentCounter) *SeriesService {
	return NewSeriesService(repo, sessions, &mockCourseReader{}, counter, NewMaterializer(time.UTC), nil, "series", time.Minute, validator.New(), zap.NewNop())
}

func TestSeriesServiceCreateMaterializes(t *testing.T) {
	repo := &mockSeriesRepo{}
	sessions := &mockSessionStore{}
	svc := newSeriesService(repo, sessions, &mockEnrollmentCounter{})

	series, result, err := svc.Create(context.Background(), CreateSeriesRequest{
		CourseID:      "course-1",
		Weekdays:      []int{3, 5},
		StartTime:     "16:00",
		DurationHours: 2,
		Capacity:      10,
		StartDate:     day(2026, time.January, 1),
		EndDate:       day(2026, time.January, 31),
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	// Tuesdays and Thursdays in January 2026, fifth Thursday dropped.
	assert.Equal(t, 8, result.Created)
	assert.Empty(t, result.FailedDates)
	assert.Len(t, sessions.inserted, 8)
	for _, session := range sessions.inserted {
		assert.Equal(t, series.ID, session.SeriesID)
		assert.Equal(t, "16:00", session.StartTime)
		assert.Equal(t, 2, session.DurationHours)
	}
}

func TestSeriesServiceCreatePartialFailure(t *testing.T) {
	repo := &mockSeriesRepo{}
	sessions := &mockSessionStore{failDates: map[string]bool{"2026-01-13": true}}
	svc := newSeriesService(repo, sessions, &mockEnrollmentCounter{})

	_, result, err := svc.Create(context.Background(), CreateSeriesRequest{
		CourseID:      "course-1",
		Weekdays:      []int{3, 5},
		StartTime:     "16:00",
		DurationHours: 2,
		Capacity:      10,
		StartDate:     day(2026, time.January, 1),
		EndDate:       day(2026, time.January, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Created)
	assert.True(t, result.Partial())
	assert.Equal(t, []string{"2026-01-13"}, result.FailedDates)
}

func TestSeriesServiceDetailCapacity(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.Series{
		"ser-1": {ID: "ser-1", CourseID: "course-1", Capacity: 10, Status: models.SeriesStatusActive},
	}}
	svc := newSeriesService(repo, &mockSessionStore{}, &mockEnrollmentCounter{count: 7})

	detail, err := svc.Detail(context.Background(), "ser-1")
	require.NoError(t, err)
	assert.Equal(t, 3, detail.CapacityRemaining)
}

func TestSeriesServiceCapacityNeverNegative(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.Series{
		"ser-1": {ID: "ser-1", Capacity: 10, Status: models.SeriesStatusActive},
	}}
	svc := newSeriesService(repo, &mockSessionStore{}, &mockEnrollmentCounter{count: 14})

	detail, err := svc.Detail(context.Background(), "ser-1")
	require.NoError(t, err)
	assert.Equal(t, 0, detail.CapacityRemaining)
}

func TestSeriesServiceCapacityFailsOpen(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.Series{
		"ser-1": {ID: "ser-1", Capacity: 10, Status: models.SeriesStatusActive},
	}}
	svc := newSeriesService(repo, &mockSessionStore{}, &mockEnrollmentCounter{err: errors.New("boom")})

	detail, err := svc.Detail(context.Background(), "ser-1")
	require.NoError(t, err)
	assert.Equal(t, 10, detail.CapacityRemaining)
}

func TestSeriesServiceCancel(t *testing.T) {
	repo := &mockSeriesRepo{series: map[string]models.Series{
		"ser-1": {ID: "ser-1", Status: models.SeriesStatusActive},
	}}
	sessions := &mockSessionStore{cancelled: 5}
	svc := newSeriesService(repo, sessions, &mockEnrollmentCounter{})

	result, err := svc.Cancel(context.Background(), "ser-1")
	require.NoError(t, err)
	assert.Equal(t, models.SeriesStatusCancelled, repo.status["ser-1"])
	assert.Equal(t, 5, result.Deleted)
}
