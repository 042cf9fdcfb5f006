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
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type mockPaymentStore struct {
	payments map[string]models.Payment
	created  *models.Payment
	approved []string
	rejected []string
}

func (m *mockPaymentStore) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockPaymentStore) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	if m.payments == nil {
		m.payments = make(map[string]models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "new-payment"
	}
	payment.Status = models.PaymentStatusPending
	m.payments[payment.ID] = *payment
	m.created = payment
	return nil
}

func (m *mockPaymentStore) Approve(ctx context.Context, id, approverID string, approvedAt time.Time) error {
	if p, ok := m.payments[id]; ok {
		p.Status = models.PaymentStatusApproved
		m.payments[id] = p
	}
	m.approved = append(m.approved, id)
	return nil
}

func (m *mockPaymentStore) Reject(ctx context.Context, id, approverID string, rejectedAt time.Time) error {
	if p, ok := m.payments[id]; ok {
		p.Status = models.PaymentStatusRejected
		m.payments[id] = p
	}
	m.rejected = append(m.rejected, id)
	return nil
}

type mockPaymentInvoiceReader struct {
	invoices map[string]models.InvoiceDetail
}

func (m *mockPaymentInvoiceReader) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if d, ok := m.invoices[id]; ok {
		inv := d.Invoice
		return &inv, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentInvoiceReader) FindDetailByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	if d, ok := m.invoices[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type approvalNotification struct {
	to, reference string
	amount        float64
}

type mockPaymentNotifier struct {
	sent []approvalNotification
}

func (m *mockPaymentNotifier) NotifyPaymentApproved(to, fullName, reference string, amount float64) {
	m.sent = append(m.sent, approvalNotification{to: to, reference: reference, amount: amount})
}

type mockPublisher struct {
	channel string
	events  []interface{}
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, payload interface{}) error {
	m.channel = channel
	m.events = append(m.events, payload)
	return nil
}

func paymentFixture() (*mockPaymentStore, *mockPaymentInvoiceReader, *mockProfileReader, *mockPaymentNotifier, *mockPublisher) {
	store := &mockPaymentStore{payments: map[string]models.Payment{
		"pay-1": {ID: "pay-1", InvoiceID: "inv-1", Amount: 3000, Method: models.PaymentMethodCash, Status: models.PaymentStatusPending},
	}}
	invoices := &mockPaymentInvoiceReader{invoices: map[string]models.InvoiceDetail{
		"inv-1": {
			Invoice:     models.Invoice{ID: "inv-1", Reference: "FAC-2026-AB12CD34", ProfileID: "prof-1", Amount: 3000, Status: models.InvoiceStatusPending},
			ProfileName: "Marie Joseph",
		},
	}}
	profiles := &mockProfileReader{profiles: map[string]models.Profile{
		"prof-1": {ID: "prof-1", FullName: "Marie Joseph", Email: "marie@example.ht"},
	}}
	return store, invoices, profiles, &mockPaymentNotifier{}, &mockPublisher{}
}

func newPaymentServiceFixture(store *mockPaymentStore, invoices *mockPaymentInvoiceReader, profiles *mockProfileReader, notifier *mockPaymentNotifier, events *mockPublisher) *PaymentService {
	return NewPaymentService(store, invoices, profiles, notifier, events, nil, "invoices:events", validator.New(), zap.NewNop())
}

func TestPaymentServiceRecord(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events)

	payment, err := svc.Record(context.Background(), RecordPaymentRequest{
		InvoiceID: "inv-1",
		Amount:    3000,
		Method:    "moncash",
		Note:      "Transaction 12345",
	}, "prof-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, models.PaymentMethodMonCash, payment.Method)
}

func TestPaymentServiceRecordUnknownMethod(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events)

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		InvoiceID: "inv-1",
		Amount:    3000,
		Method:    "bitcoin",
	}, "prof-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRecordOwnership(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events)

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		InvoiceID: "inv-1",
		Amount:    3000,
		Method:    "cash",
	}, "prof-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceApproveFiresSideEffects(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events)

	payment, err := svc.Approve(context.Background(), "pay-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, payment.Status)
	assert.Contains(t, store.approved, "pay-1")

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "marie@example.ht", notifier.sent[0].to)
	assert.Equal(t, "FAC-2026-AB12CD34", notifier.sent[0].reference)

	assert.Equal(t, "invoices:events", events.channel)
	require.Len(t, events.events, 1)
	event := events.events[0].(models.InvoiceEvent)
	assert.Equal(t, "inv-1", event.InvoiceID)
	assert.Equal(t, models.InvoiceStatusPaid, event.Status)
}

func TestPaymentServiceApproveEnqueuesReceiptJob(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	receipts := &mockReceiptScheduler{}
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events).WithReceiptJobs(receipts)

	_, err := svc.Approve(context.Background(), "pay-1", "admin-1")
	require.NoError(t, err)
	require.Len(t, receipts.rendered, 1)
	assert.Equal(t, "inv-1", receipts.rendered[0])
}

func TestPaymentServiceApproveTwice(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events)

	_, err := svc.Approve(context.Background(), "pay-1", "admin-1")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), "pay-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceReject(t *testing.T) {
	store, invoices, profiles, notifier, events := paymentFixture()
	svc := newPaymentServiceFixture(store, invoices, profiles, notifier, events)

	payment, err := svc.Reject(context.Background(), "pay-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, payment.Status)
	assert.Contains(t, store.rejected, "pay-1")
	assert.Empty(t, notifier.sent)
	assert.Empty(t, events.events)
}
