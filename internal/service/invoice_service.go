package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
	"github.com/nataclub/natation-api/pkg/jobs"
	"github.com/nataclub/natation-api/pkg/pdf"
)

const jobReceiptRender = "receipt.render"

type invoiceStore interface {
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindDetailByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
	TryAcquirePDFLock(ctx context.Context, id string) (bool, error)
	ReleasePDFLock(ctx context.Context, id string) error
	SetPDFPath(ctx context.Context, id, path string) error
}

type receiptStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type receiptRenderer interface {
	Render(receipt pdf.Receipt) ([]byte, error)
}

type receiptSigner interface {
	Generate(invoiceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (invoiceID, relPath string, expiresAt time.Time, err error)
}

type receiptMetrics interface {
	ObserveReceiptGeneration(duration time.Duration)
	RecordReceiptContention()
}

// ReceiptLink is a time-limited download handle for a rendered receipt.
type ReceiptLink struct {
	InvoiceID string    `json:"invoice_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InvoiceService serves invoice listings and the receipt PDF pipeline.
// Receipt generation is serialized per invoice through the pdf_generating
// flag; concurrent callers get a 429 and retry.
type InvoiceService struct {
	repo     invoiceStore
	storage  receiptStorage
	renderer receiptRenderer
	signer   receiptSigner
	metrics  receiptMetrics
	queue    *jobs.Queue
	logger   *zap.Logger
}

// NewInvoiceService constructs InvoiceService.
func NewInvoiceService(repo invoiceStore, storage receiptStorage, renderer receiptRenderer, signer receiptSigner, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{repo: repo, storage: storage, renderer: renderer, signer: signer, logger: logger}
}

// WithMetrics attaches receipt instrumentation.
func (s *InvoiceService) WithMetrics(metrics receiptMetrics) *InvoiceService {
	s.metrics = metrics
	return s
}

// WithRenderQueue attaches the background receipt workers fed by
// enrollment creation and payment approval.
func (s *InvoiceService) WithRenderQueue(queueCfg jobs.QueueConfig) *InvoiceService {
	queueCfg.Logger = s.logger
	s.queue = jobs.NewQueue("receipts", s.handleRender, queueCfg)
	return s
}

// Start launches the render workers. No-op without a queue.
func (s *InvoiceService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains the render workers.
func (s *InvoiceService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// EnqueueRender schedules a best-effort background render of the
// invoice's receipt. A full buffer or stopped queue only logs; the
// invoice stays downloadable through the on-demand endpoint.
func (s *InvoiceService) EnqueueRender(invoiceID string) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobReceiptRender,
		Payload: invoiceID,
	})
	if err != nil {
		s.logger.Warn("receipt render enqueue failed", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}

func (s *InvoiceService) handleRender(ctx context.Context, job jobs.Job) error {
	invoiceID, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("unexpected receipt job payload", zap.String("job", job.ID))
		return nil
	}
	return s.renderToDisk(ctx, invoiceID)
}

// renderToDisk renders the invoice receipt under the advisory lock. It
// runs off the request path, so contention and cancelled invoices are
// silent skips; render or storage failures bubble up for the queue's
// single retry.
func (s *InvoiceService) renderToDisk(ctx context.Context, invoiceID string) error {
	detail, err := s.repo.FindDetailByID(ctx, invoiceID)
	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("receipt render for unknown invoice", zap.String("invoice_id", invoiceID))
			return nil
		}
		return fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	if detail.Status == models.InvoiceStatusCancelled {
		return nil
	}

	acquired, err := s.repo.TryAcquirePDFLock(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("acquire receipt lock %s: %w", invoiceID, err)
	}
	if !acquired {
		// Someone else is rendering; their result will do.
		return nil
	}

	status := "En attente"
	if detail.Status == models.InvoiceStatusPaid {
		status = "Payée"
	}
	started := time.Now()
	data, err := s.renderer.Render(pdf.Receipt{
		Reference:   detail.Reference,
		IssuedAt:    detail.IssuedAt,
		ProfileName: detail.ProfileName,
		Description: detail.Description,
		Amount:      detail.Amount,
		Status:      status,
		PaidAt:      detail.PaidAt,
	})
	if err != nil {
		s.release(ctx, invoiceID)
		return fmt.Errorf("render receipt %s: %w", invoiceID, err)
	}

	relPath := fmt.Sprintf("%s.pdf", detail.ID)
	if _, err := s.storage.Save(relPath, data); err != nil {
		s.release(ctx, invoiceID)
		return fmt.Errorf("store receipt %s: %w", invoiceID, err)
	}
	if err := s.repo.SetPDFPath(ctx, invoiceID, relPath); err != nil {
		return fmt.Errorf("record receipt path %s: %w", invoiceID, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveReceiptGeneration(time.Since(started))
	}
	return nil
}

// List returns invoices with pagination metadata.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, *models.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
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
	return invoices, pagination, nil
}

// Detail returns one invoice. Members only see their own.
func (s *InvoiceService) Detail(ctx context.Context, id, callerProfileID string, isAdmin bool) (*models.InvoiceDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if !isAdmin && detail.ProfileID != callerProfileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return detail, nil
}

// GenerateReceipt renders the receipt PDF for a paid invoice and hands
// back a signed download link. A concurrent generation on the same
// invoice answers busy instead of queueing.
func (s *InvoiceService) GenerateReceipt(ctx context.Context, id, callerProfileID string, isAdmin bool) (*ReceiptLink, error) {
	detail, err := s.Detail(ctx, id, callerProfileID, isAdmin)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.InvoiceStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "La facture n'est pas encore payée")
	}

	// An already rendered receipt is reusable as-is.
	if detail.PDFPath != nil && *detail.PDFPath != "" {
		return s.link(detail.ID, *detail.PDFPath)
	}

	acquired, err := s.repo.TryAcquirePDFLock(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire receipt lock")
	}
	if !acquired {
		if s.metrics != nil {
			s.metrics.RecordReceiptContention()
		}
		return nil, appErrors.Clone(appErrors.ErrReceiptBusy, "")
	}

	started := time.Now()
	data, err := s.renderer.Render(pdf.Receipt{
		Reference:   detail.Reference,
		IssuedAt:    detail.IssuedAt,
		ProfileName: detail.ProfileName,
		Description: detail.Description,
		Amount:      detail.Amount,
		Status:      "Payée",
		PaidAt:      detail.PaidAt,
	})
	if err != nil {
		s.release(ctx, id)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	relPath := fmt.Sprintf("%s.pdf", detail.ID)
	if _, err := s.storage.Save(relPath, data); err != nil {
		s.release(ctx, id)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}

	// SetPDFPath records the file and clears the flag in one statement.
	if err := s.repo.SetPDFPath(ctx, id, relPath); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record receipt path")
	}
	if s.metrics != nil {
		s.metrics.ObserveReceiptGeneration(time.Since(started))
	}
	return s.link(detail.ID, relPath)
}

// OpenReceipt validates a signed token and opens the underlying file.
func (s *InvoiceService) OpenReceipt(ctx context.Context, token string) (*os.File, string, error) {
	invoiceID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Lien de téléchargement invalide ou expiré")
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if invoice.PDFPath == nil || *invoice.PDFPath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "Lien de téléchargement invalide ou expiré")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open receipt")
	}
	return file, fmt.Sprintf("recu-%s.pdf", invoice.Reference), nil
}

// UnlockReceipt clears a stuck generation flag. Admin recovery for a
// holder that crashed between acquire and release.
func (s *InvoiceService) UnlockReceipt(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if err := s.repo.ReleasePDFLock(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release receipt lock")
	}
	return nil
}

func (s *InvoiceService) link(invoiceID, relPath string) (*ReceiptLink, error) {
	token, expiresAt, err := s.signer.Generate(invoiceID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}
	return &ReceiptLink{InvoiceID: invoiceID, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *InvoiceService) release(ctx context.Context, id string) {
	if err := s.repo.ReleasePDFLock(ctx, id); err != nil {
		s.logger.Error("receipt lock release failed", zap.String("invoice_id", id), zap.Error(err))
	}
}
