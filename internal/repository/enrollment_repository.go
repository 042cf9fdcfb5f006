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

// Constraint names surfaced as typed conflicts.
const (
	constraintActiveEnrollment = "enrollments_active_profile_session_key"
	constraintInvoiceReference = "invoices_reference_key"
)

// ErrDuplicateEnrollment signals an active enrollment already exists for
// the profile+session pair.
var ErrDuplicateEnrollment = fmt.Errorf("duplicate active enrollment")

// ErrDuplicateReference signals an invoice reference collision.
var ErrDuplicateReference = fmt.Errorf("duplicate invoice reference")

// EnrollmentRepository handles persistence of enrollments and their
// creation-time invoices.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with profile, course and invoice info.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN profiles p ON p.id = e.profile_id
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN plans pl ON pl.id = e.plan_id
LEFT JOIN invoices i ON i.enrollment_id = e.id`
	var conditions []string
	var args []interface{}

	if filter.ProfileID != "" {
		conditions = append(conditions, fmt.Sprintf("e.profile_id = $%d", len(args)+1))
		args = append(args, filter.ProfileID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SeriesID != "" {
		conditions = append(conditions, fmt.Sprintf("e.series_id = $%d", len(args)+1))
		args = append(args, filter.SeriesID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "e.created_at",
		"start_date":   "e.start_date",
		"profile_name": "p.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := normalizeOrder(filter.SortOrder)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT e.id, e.profile_id, e.course_id, e.session_id, e.series_id, e.plan_id,
        e.start_date, e.selected_slot, e.status, e.cancelled_at, e.created_at, e.updated_at,
        p.full_name AS profile_name, c.name AS course_name, pl.name AS plan_name,
        i.id AS invoice_id, i.reference AS invoice_reference, i.amount AS invoice_amount
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, profile_id, course_id, session_id, series_id, plan_id, start_date,
        selected_slot, status, cancelled_at, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.profile_id, e.course_id, e.session_id, e.series_id, e.plan_id,
        e.start_date, e.selected_slot, e.status, e.cancelled_at, e.created_at, e.updated_at,
        p.full_name AS profile_name, c.name AS course_name, pl.name AS plan_name,
        i.id AS invoice_id, i.reference AS invoice_reference, i.amount AS invoice_amount
        FROM enrollments e
        LEFT JOIN profiles p ON p.id = e.profile_id
        LEFT JOIN courses c ON c.id = e.course_id
        LEFT JOIN plans pl ON pl.id = e.plan_id
        LEFT JOIN invoices i ON i.enrollment_id = e.id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreateWithInvoice inserts the enrollment and its invoice in a single
// transaction, mirroring the one-shot create_enrollment_with_invoice call
// of the original backend. The partial unique index on active
// profile+session pairs maps to ErrDuplicateEnrollment.
func (r *EnrollmentRepository) CreateWithInvoice(ctx context.Context, enrollment *models.Enrollment, invoice *models.Invoice) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	invoice.EnrollmentID = &enrollment.ID
	invoice.ProfileID = enrollment.ProfileID
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
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const enrollmentQuery = `INSERT INTO enrollments (id, profile_id, course_id, session_id, series_id, plan_id,
        start_date, selected_slot, status, created_at, updated_at)
        VALUES (:id, :profile_id, :course_id, :session_id, :series_id, :plan_id,
        :start_date, :selected_slot, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, enrollmentQuery, enrollment); err != nil {
		if isUniqueViolation(err, constraintActiveEnrollment) {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	const invoiceQuery = `INSERT INTO invoices (id, reference, profile_id, enrollment_id, membership_id, description,
        amount, status, pdf_generating, issued_at, created_at, updated_at)
        VALUES (:id, :reference, :profile_id, :enrollment_id, :membership_id, :description,
        :amount, :status, FALSE, :issued_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, invoiceQuery, invoice); err != nil {
		if isUniqueViolation(err, constraintInvoiceReference) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("create enrollment invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// CancelWithInvoice marks the enrollment cancelled and voids its invoice in
// one transaction. The session row is left alone: other students share it.
func (r *EnrollmentRepository) CancelWithInvoice(ctx context.Context, id string, cancelledAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const enrollmentQuery = `UPDATE enrollments SET status = $2, cancelled_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, enrollmentQuery, id, models.EnrollmentStatusCancelled, cancelledAt); err != nil {
		return fmt.Errorf("cancel enrollment: %w", err)
	}

	const invoiceQuery = `UPDATE invoices SET status = $2, updated_at = $3 WHERE enrollment_id = $1 AND status = $4`
	if _, err := tx.ExecContext(ctx, invoiceQuery, id, models.InvoiceStatusCancelled, cancelledAt, models.InvoiceStatusPending); err != nil {
		return fmt.Errorf("void enrollment invoice: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel tx: %w", err)
	}
	return nil
}

// CountActiveBySeries counts active enrollments referencing non-cancelled
// sessions of a series. Feeds the capacity accountant.
func (r *EnrollmentRepository) CountActiveBySeries(ctx context.Context, seriesID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e
        JOIN sessions se ON se.id = e.session_id
        WHERE e.series_id = $1 AND e.status = $2 AND se.status = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, seriesID, models.EnrollmentStatusActive, models.SessionStatusActive); err != nil {
		return 0, fmt.Errorf("count series enrollments: %w", err)
	}
	return count, nil
}
