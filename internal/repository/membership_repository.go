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

// MembershipRepository handles persistence of club memberships.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository constructs the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// List returns memberships with profile and billing info.
func (r *MembershipRepository) List(ctx context.Context, filter models.MembershipFilter) ([]models.MembershipDetail, int, error) {
	base := `FROM memberships m
LEFT JOIN profiles p ON p.id = m.profile_id
LEFT JOIN invoices i ON i.membership_id = m.id`
	var conditions []string
	var args []interface{}

	if filter.ProfileID != "" {
		conditions = append(conditions, fmt.Sprintf("m.profile_id = $%d", len(args)+1))
		args = append(args, filter.ProfileID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("m.kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("m.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "m.created_at",
		"start_date": "m.start_date",
		"end_date":   "m.end_date",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "m.created_at"
	}
	order := normalizeOrder(filter.SortOrder)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT m.id, m.profile_id, m.kind, m.status, m.start_date, m.end_date, m.price,
        m.activated_at, m.created_at, m.updated_at,
        p.full_name AS profile_name, p.email AS profile_email,
        i.id AS invoice_id, i.reference AS invoice_reference
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var memberships []models.MembershipDetail
	if err := r.db.SelectContext(ctx, &memberships, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list memberships: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count memberships: %w", err)
	}
	return memberships, total, nil
}

// FindByID returns a membership by its ID.
func (r *MembershipRepository) FindByID(ctx context.Context, id string) (*models.Membership, error) {
	const query = `SELECT id, profile_id, kind, status, start_date, end_date, price, activated_at, created_at, updated_at
        FROM memberships WHERE id = $1`
	var membership models.Membership
	if err := r.db.GetContext(ctx, &membership, query, id); err != nil {
		return nil, err
	}
	return &membership, nil
}

// CreateWithInvoice inserts the membership and its invoice in one
// transaction, the same shape as enrollment billing.
func (r *MembershipRepository) CreateWithInvoice(ctx context.Context, membership *models.Membership, invoice *models.Invoice) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	if membership.Status == "" {
		membership.Status = models.MembershipStatusPending
	}
	now := time.Now().UTC()
	membership.CreatedAt = now
	membership.UpdatedAt = now

	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	invoice.MembershipID = &membership.ID
	invoice.ProfileID = membership.ProfileID
	if invoice.Status == "" {
		invoice.Status = models.InvoiceStatusPending
	}
	if invoice.IssuedAt.IsZero() {
		invoice.IssuedAt = now
	}
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const membershipQuery = `INSERT INTO memberships (id, profile_id, kind, status, start_date, end_date, price, created_at, updated_at)
        VALUES (:id, :profile_id, :kind, :status, :start_date, :end_date, :price, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, membershipQuery, membership); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}

	const invoiceQuery = `INSERT INTO invoices (id, reference, profile_id, enrollment_id, membership_id, description,
        amount, status, pdf_generating, issued_at, created_at, updated_at)
        VALUES (:id, :reference, :profile_id, :enrollment_id, :membership_id, :description,
        :amount, :status, FALSE, :issued_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, invoiceQuery, invoice); err != nil {
		if isUniqueViolation(err, constraintInvoiceReference) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("create membership invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit membership tx: %w", err)
	}
	return nil
}

// Activate transitions the membership to ACTIVE once its invoice is paid.
func (r *MembershipRepository) Activate(ctx context.Context, id string, activatedAt time.Time) error {
	const query = `UPDATE memberships SET status = $2, activated_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.MembershipStatusActive, activatedAt); err != nil {
		return fmt.Errorf("activate membership: %w", err)
	}
	return nil
}

// UpdateStatus transitions the membership lifecycle.
func (r *MembershipRepository) UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error {
	const query = `UPDATE memberships SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update membership status: %w", err)
	}
	return nil
}

// FindActiveByProfile returns the profile's current active membership if any.
func (r *MembershipRepository) FindActiveByProfile(ctx context.Context, profileID string) (*models.Membership, error) {
	const query = `SELECT id, profile_id, kind, status, start_date, end_date, price, activated_at, created_at, updated_at
        FROM memberships WHERE profile_id = $1 AND status = $2 ORDER BY end_date DESC LIMIT 1`
	var membership models.Membership
	if err := r.db.GetContext(ctx, &membership, query, profileID, models.MembershipStatusActive); err != nil {
		return nil, err
	}
	return &membership, nil
}
