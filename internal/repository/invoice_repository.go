package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nataclub/natation-api/internal/models"
)

// InvoiceRepository handles persistence of invoices, including the receipt
// generation advisory lock.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// List returns invoices with the billed profile name.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error) {
	base := `FROM invoices i
LEFT JOIN profiles p ON p.id = i.profile_id`
	var conditions []string
	var args []interface{}

	if filter.ProfileID != "" {
		conditions = append(conditions, fmt.Sprintf("i.profile_id = $%d", len(args)+1))
		args = append(args, filter.ProfileID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("i.issued_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("i.issued_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"issued_at": "i.issued_at",
		"amount":    "i.amount",
		"reference": "i.reference",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "i.issued_at"
	}
	order := normalizeOrder(filter.SortOrder)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT i.id, i.reference, i.profile_id, i.enrollment_id, i.membership_id, i.description,
        i.amount, i.status, i.pdf_path, i.pdf_generating, i.issued_at, i.paid_at, i.created_at, i.updated_at,
        p.full_name AS profile_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// FindByID returns an invoice by its ID.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	const query = `SELECT id, reference, profile_id, enrollment_id, membership_id, description, amount, status,
        pdf_path, pdf_generating, issued_at, paid_at, created_at, updated_at FROM invoices WHERE id = $1`
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindDetailByID returns an invoice with the billed profile name.
func (r *InvoiceRepository) FindDetailByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	const query = `SELECT i.id, i.reference, i.profile_id, i.enrollment_id, i.membership_id, i.description,
        i.amount, i.status, i.pdf_path, i.pdf_generating, i.issued_at, i.paid_at, i.created_at, i.updated_at,
        p.full_name AS profile_name
        FROM invoices i
        LEFT JOIN profiles p ON p.id = i.profile_id
        WHERE i.id = $1`
	var detail models.InvoiceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// TryAcquirePDFLock flips the pdf_generating flag with a single
// compare-and-set UPDATE. A false return means another request holds the
// lock and the caller must answer 429 immediately; there is no queueing
// and the flag carries no expiry.
func (r *InvoiceRepository) TryAcquirePDFLock(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE invoices SET pdf_generating = TRUE, updated_at = NOW()
        WHERE id = $1 AND pdf_generating = FALSE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("acquire pdf lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire pdf lock: %w", err)
	}
	return affected == 1, nil
}

// ReleasePDFLock clears the generating flag unconditionally. Also the
// admin unlock for flags orphaned by a crashed holder.
func (r *InvoiceRepository) ReleasePDFLock(ctx context.Context, id string) error {
	const query = `UPDATE invoices SET pdf_generating = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("release pdf lock: %w", err)
	}
	return nil
}

// SetPDFPath records the rendered receipt location and clears the lock in
// the same statement.
func (r *InvoiceRepository) SetPDFPath(ctx context.Context, id, path string) error {
	const query = `UPDATE invoices SET pdf_path = $2, pdf_generating = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path); err != nil {
		return fmt.Errorf("set pdf path: %w", err)
	}
	return nil
}
