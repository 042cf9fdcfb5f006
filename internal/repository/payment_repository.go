package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nataclub/natation-api/internal/models"
)

// PaymentRepository handles persistence of payments against invoices.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments with invoice and profile context.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments pay
LEFT JOIN invoices i ON i.id = pay.invoice_id
LEFT JOIN profiles p ON p.id = i.profile_id`
	var conditions []string
	var args []interface{}

	if filter.InvoiceID != "" {
		conditions = append(conditions, fmt.Sprintf("pay.invoice_id = $%d", len(args)+1))
		args = append(args, filter.InvoiceID)
	}
	if filter.ProfileID != "" {
		conditions = append(conditions, fmt.Sprintf("i.profile_id = $%d", len(args)+1))
		args = append(args, filter.ProfileID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("pay.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("pay.method = $%d", len(args)+1))
		args = append(args, filter.Method)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "pay.created_at",
		"amount":     "pay.amount",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "pay.created_at"
	}
	order := normalizeOrder(filter.SortOrder)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT pay.id, pay.invoice_id, pay.amount, pay.method, pay.note, pay.status,
        pay.approved_by, pay.approved_at, pay.created_at, pay.updated_at,
        i.reference AS invoice_reference, i.amount AS invoice_amount,
        i.profile_id AS profile_id, p.full_name AS profile_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, invoice_id, amount, method, note, status, approved_by, approved_at, created_at, updated_at
        FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create records a payment awaiting review.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, invoice_id, amount, method, note, status, created_at, updated_at)
        VALUES (:id, :invoice_id, :amount, :method, :note, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Approve marks the payment approved and its invoice paid in one
// transaction.
func (r *PaymentRepository) Approve(ctx context.Context, id, approverID string, approvedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const paymentQuery = `UPDATE payments SET status = $2, approved_by = $3, approved_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, paymentQuery, id, models.PaymentStatusApproved, approverID, approvedAt); err != nil {
		return fmt.Errorf("approve payment: %w", err)
	}

	const invoiceQuery = `UPDATE invoices SET status = $2, paid_at = $3, updated_at = $3
        WHERE id = (SELECT invoice_id FROM payments WHERE id = $1)`
	if _, err := tx.ExecContext(ctx, invoiceQuery, id, models.InvoiceStatusPaid, approvedAt); err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approve tx: %w", err)
	}
	return nil
}

// Reject marks the payment rejected. The invoice stays pending.
func (r *PaymentRepository) Reject(ctx context.Context, id, approverID string, rejectedAt time.Time) error {
	const query = `UPDATE payments SET status = $2, approved_by = $3, approved_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentStatusRejected, approverID, rejectedAt); err != nil {
		return fmt.Errorf("reject payment: %w", err)
	}
	return nil
}
