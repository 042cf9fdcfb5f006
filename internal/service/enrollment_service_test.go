package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/repository"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type mockEnrollmentStore struct {
	enrollments  map[string]models.Enrollment
	invoices     map[string]models.Invoice
	count        int
	duplicate    bool
	refCollision bool
	cancelled    []string
}

func (m *mockEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		detail := models.EnrollmentDetail{Enrollment: e}
		if inv, ok := m.invoices[id]; ok {
			detail.InvoiceID = inv.ID
			detail.InvoiceReference = inv.Reference
			detail.InvoiceAmount = inv.Amount
		}
		return &detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentStore) CreateWithInvoice(ctx context.Context, enrollment *models.Enrollment, invoice *models.Invoice) error {
	if m.duplicate {
		return repository.ErrDuplicateEnrollment
	}
	if m.refCollision {
		return repository.ErrDuplicateReference
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
		m.invoices = make(map[string]models.Invoice)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	enrollment.Status = models.EnrollmentStatusActive
	if invoice.ID == "" {
		invoice.ID = "new-invoice"
	}
	invoice.Status = models.InvoiceStatusPending
	m.enrollments[enrollment.ID] = *enrollment
	m.invoices[enrollment.ID] = *invoice
	return nil
}

func (m *mockEnrollmentStore) CancelWithInvoice(ctx context.Context, id string, cancelledAt time.Time) error {
	if e, ok := m.enrollments[id]; ok {
		e.Status = models.EnrollmentStatusCancelled
		e.CancelledAt = &cancelledAt
		m.enrollments[id] = e
	}
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockEnrollmentStore) CountActiveBySeries(ctx context.Context, seriesID string) (int, error) {
	return m.count, nil
}

type mockSessionReader struct {
	sessions map[string]models.Session
}

func (m *mockSessionReader) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockSeriesReader struct {
	series map[string]models.Series
}

func (m *mockSeriesReader) FindByID(ctx context.Context, id string) (*models.Series, error) {
	if s, ok := m.series[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockPlanResolver struct {
	plans map[string]models.Plan
}

func planKey(hours int, category models.CourseCategory) string {
	return string(category) + string(rune('0'+hours))
}

func (m *mockPlanResolver) FindByDurationAndCategory(ctx context.Context, durationHours int, category models.CourseCategory, includeInternal bool) (*models.Plan, error) {
	if p, ok := m.plans[planKey(durationHours, category)]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

type mockProfileReader struct {
	profiles map[string]models.Profile
}

func (m *mockProfileReader) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

type recordedNotification struct {
	to, course, reference string
	amount                float64
}

type mockNotifier struct {
	sent []recordedNotification
}

func (m *mockNotifier) NotifyEnrollmentConfirmed(to, fullName, courseName, reference string, amount float64) {
	m.sent = append(m.sent, recordedNotification{to: to, course: courseName, reference: reference, amount: amount})
}

type mockReceiptScheduler struct {
	rendered []string
}

func (m *mockReceiptScheduler) EnqueueRender(invoiceID string) {
	m.rendered = append(m.rendered, invoiceID)
}

func enrollmentFixture() (*mockEnrollmentStore, *mockSessionReader, *mockSeriesReader, *mockPlanResolver, *mockProfileReader, *mockNotifier) {
	store := &mockEnrollmentStore{}
	sessions := &mockSessionReader{sessions: map[string]models.Session{
		"sess-1": {ID: "sess-1", SeriesID: "ser-1", CourseID: "course-1", Date: time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC), StartTime: "16:00", DurationHours: 2, Status: models.SessionStatusActive},
	}}
	series := &mockSeriesReader{series: map[string]models.Series{
		"ser-1": {ID: "ser-1", CourseID: "course-1", StartTime: "16:00", DurationHours: 2, Capacity: 10, Status: models.SeriesStatusActive, BookingMode: models.BookingModeOpen},
	}}
	plans := &mockPlanResolver{plans: map[string]models.Plan{
		planKey(1, models.CategoryNatation): {ID: "plan-1h", Name: "Natation 1h", Price: 1800},
		planKey(2, models.CategoryNatation): {ID: "plan-2h", Name: "Natation 2h", Price: 3000},
	}}
	profiles := &mockProfileReader{profiles: map[string]models.Profile{
		"prof-1": {ID: "prof-1", FullName: "Marie Joseph", Email: "marie@example.ht"},
	}}
	return store, sessions, series, plans, profiles, &mockNotifier{}
}

func newEnrollmentServiceFixture(store *mockEnrollmentStore, sessions *mockSessionReader, series *mockSeriesReader, plans *mockPlanResolver, profiles *mockProfileReader, notifier *mockNotifier) *EnrollmentService {
	return NewEnrollmentService(store, sessions, series, &mockCourseReader{}, plans, profiles, NewSlotResolver(), notifier, nil, "series", validator.New(), zap.NewNop())
}

func TestEnrollmentServiceQuoteBothSlots(t *testing.T) {
	svc := newEnrollmentServiceFixture(enrollmentFixture())

	quote, err := svc.Quote(context.Background(), EnrollmentQuoteRequest{SessionID: "sess-1", FirstHalf: true, SecondHalf: true}, false)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBoth, quote.Slot)
	assert.Equal(t, 2, quote.DurationHours)
	assert.Equal(t, "16:00 - 18:00", quote.TimeRange)
	assert.Equal(t, "plan-2h", quote.PlanID)
	assert.Equal(t, 3000.0, quote.Amount)
}

func TestEnrollmentServiceQuoteSecondAloneRejected(t *testing.T) {
	svc := newEnrollmentServiceFixture(enrollmentFixture())

	_, err := svc.Quote(context.Background(), EnrollmentQuoteRequest{SessionID: "sess-1", SecondHalf: true}, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotOrder.Code, appErrors.FromError(err).Code)

	quote, err := svc.Quote(context.Background(), EnrollmentQuoteRequest{SessionID: "sess-1", SecondHalf: true}, true)
	require.NoError(t, err)
	assert.Equal(t, models.SlotSecond, quote.Slot)
	assert.Equal(t, "plan-1h", quote.PlanID)
}

func TestEnrollmentServiceQuoteMissingPlanIsHardStop(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	delete(plans.plans, planKey(2, models.CategoryNatation))
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	_, err := svc.Quote(context.Background(), EnrollmentQuoteRequest{SessionID: "sess-1", FirstHalf: true, SecondHalf: true}, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoValidPlan.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCreate(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	detail, err := svc.Create(context.Background(), CreateEnrollmentRequest{ProfileID: "prof-1", SessionID: "sess-1", FirstHalf: true, SecondHalf: true}, false)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
	assert.Equal(t, models.SlotBoth, detail.SelectedSlot)
	assert.Equal(t, 3000.0, detail.InvoiceAmount)
	assert.Contains(t, detail.InvoiceReference, "FAC-")

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "marie@example.ht", notifier.sent[0].to)
	assert.Equal(t, detail.InvoiceReference, notifier.sent[0].reference)
}

func TestEnrollmentServiceCreateDuplicate(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	store.duplicate = true
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{ProfileID: "prof-1", SessionID: "sess-1", FirstHalf: true}, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.sent)
}

func TestEnrollmentServiceCreateFullSeriesStillBooks(t *testing.T) {
	// Remaining capacity is informational: a series at or past its
	// ceiling keeps accepting enrollments.
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	store.count = 10
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	detail, err := svc.Create(context.Background(), CreateEnrollmentRequest{ProfileID: "prof-1", SessionID: "sess-1", FirstHalf: true}, false)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, detail.Status)
}

func TestEnrollmentServiceCreateDuplicateReference(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	store.refCollision = true
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{ProfileID: "prof-1", SessionID: "sess-1", FirstHalf: true}, false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestEnrollmentServiceCreateEnqueuesReceiptJob(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	receipts := &mockReceiptScheduler{}
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier).WithReceiptJobs(receipts)

	detail, err := svc.Create(context.Background(), CreateEnrollmentRequest{ProfileID: "prof-1", SessionID: "sess-1", FirstHalf: true}, false)
	require.NoError(t, err)
	require.Len(t, receipts.rendered, 1)
	assert.Equal(t, detail.InvoiceID, receipts.rendered[0])
}

func TestEnrollmentServiceAdminOnlyBooking(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	s := series.series["ser-1"]
	s.BookingMode = models.BookingModeAdminOnly
	series.series["ser-1"] = s
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	_, err := svc.Quote(context.Background(), EnrollmentQuoteRequest{SessionID: "sess-1", FirstHalf: true}, false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Quote(context.Background(), EnrollmentQuoteRequest{SessionID: "sess-1", FirstHalf: true}, true)
	require.NoError(t, err)
}

func TestEnrollmentServiceCancelOwnership(t *testing.T) {
	store, sessions, series, plans, profiles, notifier := enrollmentFixture()
	store.enrollments = map[string]models.Enrollment{
		"enr-1": {ID: "enr-1", ProfileID: "prof-1", Status: models.EnrollmentStatusActive},
	}
	store.invoices = map[string]models.Invoice{}
	svc := newEnrollmentServiceFixture(store, sessions, series, plans, profiles, notifier)

	_, err := svc.Cancel(context.Background(), "enr-1", "prof-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	detail, err := svc.Cancel(context.Background(), "enr-1", "prof-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, detail.Status)
	assert.Contains(t, store.cancelled, "enr-1")
}
