package service

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
	"github.com/nataclub/natation-api/pkg/pdf"
	"github.com/nataclub/natation-api/pkg/storage"
)

type mockInvoiceStore struct {
	invoices map[string]models.InvoiceDetail
	locked   map[string]bool
	released []string
	paths    map[string]string
}

func (m *mockInvoiceStore) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error) {
	return nil, 0, nil
}

func (m *mockInvoiceStore) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if d, ok := m.invoices[id]; ok {
		inv := d.Invoice
		return &inv, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceStore) FindDetailByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	if d, ok := m.invoices[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInvoiceStore) TryAcquirePDFLock(ctx context.Context, id string) (bool, error) {
	if m.locked == nil {
		m.locked = make(map[string]bool)
	}
	if m.locked[id] {
		return false, nil
	}
	m.locked[id] = true
	return true, nil
}

func (m *mockInvoiceStore) ReleasePDFLock(ctx context.Context, id string) error {
	m.locked[id] = false
	m.released = append(m.released, id)
	return nil
}

func (m *mockInvoiceStore) SetPDFPath(ctx context.Context, id, path string) error {
	if m.paths == nil {
		m.paths = make(map[string]string)
	}
	m.paths[id] = path
	m.locked[id] = false
	if d, ok := m.invoices[id]; ok {
		d.PDFPath = &path
		m.invoices[id] = d
	}
	return nil
}

func paidInvoiceFixture() *mockInvoiceStore {
	paidAt := time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC)
	return &mockInvoiceStore{invoices: map[string]models.InvoiceDetail{
		"inv-1": {
			Invoice: models.Invoice{
				ID:        "inv-1",
				Reference: "FAC-2026-AB12CD34",
				ProfileID: "prof-1",
				Amount:    3000,
				Status:    models.InvoiceStatusPaid,
				IssuedAt:  time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC),
				PaidAt:    &paidAt,
			},
			ProfileName: "Marie Joseph",
		},
	}}
}

func newInvoiceServiceFixture(t *testing.T, repo *mockInvoiceStore) *InvoiceService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	renderer := pdf.NewReceiptRenderer("École de Natation", "Port-au-Prince")
	return NewInvoiceService(repo, store, renderer, signer, zap.NewNop())
}

func TestInvoiceServiceGenerateReceipt(t *testing.T) {
	repo := paidInvoiceFixture()
	svc := newInvoiceServiceFixture(t, repo)

	link, err := svc.GenerateReceipt(context.Background(), "inv-1", "prof-1", false)
	require.NoError(t, err)
	assert.Equal(t, "inv-1", link.InvoiceID)
	assert.NotEmpty(t, link.Token)
	assert.Equal(t, "inv-1.pdf", repo.paths["inv-1"])

	file, filename, err := svc.OpenReceipt(context.Background(), link.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "recu-FAC-2026-AB12CD34.pdf", filename)

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestInvoiceServiceGenerateReceiptBusy(t *testing.T) {
	repo := paidInvoiceFixture()
	repo.locked = map[string]bool{"inv-1": true}
	svc := newInvoiceServiceFixture(t, repo)

	_, err := svc.GenerateReceipt(context.Background(), "inv-1", "prof-1", false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrReceiptBusy.Code, appErr.Code)
	assert.Equal(t, 429, appErr.Status)
}

func TestInvoiceServiceGenerateReceiptUnpaid(t *testing.T) {
	repo := paidInvoiceFixture()
	d := repo.invoices["inv-1"]
	d.Status = models.InvoiceStatusPending
	d.PaidAt = nil
	repo.invoices["inv-1"] = d
	svc := newInvoiceServiceFixture(t, repo)

	_, err := svc.GenerateReceipt(context.Background(), "inv-1", "prof-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestInvoiceServiceGenerateReceiptOwnership(t *testing.T) {
	repo := paidInvoiceFixture()
	svc := newInvoiceServiceFixture(t, repo)

	_, err := svc.GenerateReceipt(context.Background(), "inv-1", "prof-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins may generate receipts for anyone.
	_, err = svc.GenerateReceipt(context.Background(), "inv-1", "prof-2", true)
	require.NoError(t, err)
}

func TestInvoiceServiceGenerateReceiptReuseExisting(t *testing.T) {
	repo := paidInvoiceFixture()
	existing := "inv-1.pdf"
	d := repo.invoices["inv-1"]
	d.PDFPath = &existing
	repo.invoices["inv-1"] = d
	svc := newInvoiceServiceFixture(t, repo)

	link, err := svc.GenerateReceipt(context.Background(), "inv-1", "prof-1", false)
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	// No lock round-trip happened for the cached path.
	assert.Empty(t, repo.locked)
}

func TestInvoiceServiceRenderToDisk(t *testing.T) {
	repo := paidInvoiceFixture()
	svc := newInvoiceServiceFixture(t, repo)

	require.NoError(t, svc.renderToDisk(context.Background(), "inv-1"))
	assert.Equal(t, "inv-1.pdf", repo.paths["inv-1"])
	assert.False(t, repo.locked["inv-1"])
}

func TestInvoiceServiceRenderToDiskPendingInvoice(t *testing.T) {
	// Enrollment creation schedules a render before any payment lands.
	repo := paidInvoiceFixture()
	d := repo.invoices["inv-1"]
	d.Status = models.InvoiceStatusPending
	d.PaidAt = nil
	repo.invoices["inv-1"] = d
	svc := newInvoiceServiceFixture(t, repo)

	require.NoError(t, svc.renderToDisk(context.Background(), "inv-1"))
	assert.Equal(t, "inv-1.pdf", repo.paths["inv-1"])
}

func TestInvoiceServiceRenderToDiskContendedSkips(t *testing.T) {
	repo := paidInvoiceFixture()
	repo.locked = map[string]bool{"inv-1": true}
	svc := newInvoiceServiceFixture(t, repo)

	require.NoError(t, svc.renderToDisk(context.Background(), "inv-1"))
	assert.Empty(t, repo.paths)
}

func TestInvoiceServiceRenderToDiskUnknownInvoice(t *testing.T) {
	svc := newInvoiceServiceFixture(t, &mockInvoiceStore{})

	require.NoError(t, svc.renderToDisk(context.Background(), "missing"))
}

func TestInvoiceServiceEnqueueRenderWithoutQueue(t *testing.T) {
	repo := paidInvoiceFixture()
	svc := newInvoiceServiceFixture(t, repo)

	// No queue attached: scheduling is a silent no-op.
	svc.EnqueueRender("inv-1")
	assert.Empty(t, repo.paths)
}

func TestInvoiceServiceUnlockReceipt(t *testing.T) {
	repo := paidInvoiceFixture()
	repo.locked = map[string]bool{"inv-1": true}
	svc := newInvoiceServiceFixture(t, repo)

	require.NoError(t, svc.UnlockReceipt(context.Background(), "inv-1"))
	assert.Contains(t, repo.released, "inv-1")

	err := svc.UnlockReceipt(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestInvoiceServiceOpenReceiptTamperedToken(t *testing.T) {
	repo := paidInvoiceFixture()
	svc := newInvoiceServiceFixture(t, repo)

	link, err := svc.GenerateReceipt(context.Background(), "inv-1", "prof-1", false)
	require.NoError(t, err)

	var file *os.File
	file, _, err = svc.OpenReceipt(context.Background(), link.Token+"x")
	require.Error(t, err)
	require.Nil(t, file)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
