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

type paymentStore interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	Approve(ctx context.Context, id, approverID string, approvedAt time.Time) error
	Reject(ctx context.Context, id, approverID string, rejectedAt time.Time) error
}

type paymentInvoiceReader interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindDetailByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
}

type paymentProfileReader interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

type paymentNotifier interface {
	NotifyPaymentApproved(to, fullName, reference string, amount float64)
}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

type membershipActivator interface {
	ActivatePaid(ctx context.Context, id string, activatedAt time.Time)
}

// RecordPaymentRequest declares money received against an invoice.
type RecordPaymentRequest struct {
	InvoiceID string  `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required"`
	Note      string  `json:"note" validate:"omitempty,max=500"`
}

// PaymentService manages the manual payment review workflow. There is no
// gateway: cash, checks, transfers and MonCash screenshots all land here
// and an admin approves or rejects each one.
type PaymentService struct {
	repo          paymentStore
	invoices      paymentInvoiceReader
	profiles      paymentProfileReader
	notifier      paymentNotifier
	events        eventPublisher
	memberships   membershipActivator
	receipts      receiptScheduler
	eventsChannel string
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentStore, invoices paymentInvoiceReader, profiles paymentProfileReader, notifier paymentNotifier, events eventPublisher, memberships membershipActivator, eventsChannel string, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:          repo,
		invoices:      invoices,
		profiles:      profiles,
		notifier:      notifier,
		events:        events,
		memberships:   memberships,
		eventsChannel: eventsChannel,
		validator:     validate,
		logger:        logger,
	}
}

// WithReceiptJobs attaches the background receipt renderer used after
// approval to refresh the invoice's receipt as paid.
func (s *PaymentService) WithReceiptJobs(receipts receiptScheduler) *PaymentService {
	s.receipts = receipts
	return s
}

// List returns payments with pagination metadata.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
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
	return payments, pagination, nil
}

// Record registers a payment awaiting review. Members may only declare
// payments against their own invoices.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest, callerProfileID string, isAdmin bool) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	method := models.PaymentMethod(req.Method)
	if !models.ValidPaymentMethod(method) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Mode de paiement inconnu")
	}
	invoice, err := s.invoices.FindByID(ctx, req.InvoiceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	if !isAdmin && invoice.ProfileID != callerProfileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	if invoice.Status != models.InvoiceStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "Cette facture n'attend plus de paiement")
	}

	payment := &models.Payment{
		InvoiceID: invoice.ID,
		Amount:    req.Amount,
		Method:    method,
		Note:      req.Note,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	return payment, nil
}

// Approve validates the payment and marks its invoice paid, then fires
// the receipt email and the invoice event without blocking the response.
func (s *PaymentService) Approve(ctx context.Context, id, approverID string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment already reviewed")
	}

	approvedAt := time.Now().UTC()
	if err := s.repo.Approve(ctx, id, approverID, approvedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve payment")
	}
	payment.Status = models.PaymentStatusApproved
	payment.ApprovedBy = &approverID
	payment.ApprovedAt = &approvedAt

	s.afterApproval(ctx, payment, approvedAt)
	return payment, nil
}

// Reject marks the payment rejected; the invoice stays pending so the
// member can try again.
func (s *PaymentService) Reject(ctx context.Context, id, approverID string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment already reviewed")
	}

	rejectedAt := time.Now().UTC()
	if err := s.repo.Reject(ctx, id, approverID, rejectedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject payment")
	}
	payment.Status = models.PaymentStatusRejected
	payment.ApprovedBy = &approverID
	payment.ApprovedAt = &rejectedAt
	return payment, nil
}

// afterApproval runs the approval side effects. Each one is best-effort:
// the payment is already committed, so failures only get logged.
func (s *PaymentService) afterApproval(ctx context.Context, payment *models.Payment, approvedAt time.Time) {
	detail, err := s.invoices.FindDetailByID(ctx, payment.InvoiceID)
	if err != nil {
		s.logger.Error("post-approval invoice load failed", zap.String("invoice_id", payment.InvoiceID), zap.Error(err))
		return
	}

	if s.receipts != nil {
		s.receipts.EnqueueRender(detail.ID)
	}

	if s.events != nil {
		event := models.InvoiceEvent{
			InvoiceID: detail.ID,
			Reference: detail.Reference,
			Status:    models.InvoiceStatusPaid,
			At:        approvedAt,
		}
		if err := s.events.Publish(ctx, s.eventsChannel, event); err != nil {
			s.logger.Warn("invoice event publish failed", zap.String("invoice_id", detail.ID), zap.Error(err))
		}
	}

	if detail.MembershipID != nil && s.memberships != nil {
		s.memberships.ActivatePaid(ctx, *detail.MembershipID, approvedAt)
	}

	if s.notifier != nil {
		profile, err := s.profiles.FindByID(ctx, detail.ProfileID)
		if err != nil {
			s.logger.Warn("post-approval profile load failed", zap.String("profile_id", detail.ProfileID), zap.Error(err))
			return
		}
		s.notifier.NotifyPaymentApproved(profile.Email, profile.FullName, detail.Reference, detail.Amount)
	}
}
