package models

import "time"

// InvoiceStatus represents the billing lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice tracks one billable item: an enrollment or a membership.
// PDFGenerating is the advisory lock serializing receipt rendering; it has
// no expiry on purpose, a crashed holder is cleared by an admin unlock.
type Invoice struct {
	ID            string        `db:"id" json:"id"`
	Reference     string        `db:"reference" json:"reference"`
	ProfileID     string        `db:"profile_id" json:"profile_id"`
	EnrollmentID  *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	MembershipID  *string       `db:"membership_id" json:"membership_id,omitempty"`
	Description   string        `db:"description" json:"description"`
	Amount        float64       `db:"amount" json:"amount"`
	Status        InvoiceStatus `db:"status" json:"status"`
	PDFPath       *string       `db:"pdf_path" json:"pdf_path,omitempty"`
	PDFGenerating bool          `db:"pdf_generating" json:"pdf_generating"`
	IssuedAt      time.Time     `db:"issued_at" json:"issued_at"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// InvoiceDetail enriches Invoice with the billed profile.
type InvoiceDetail struct {
	Invoice
	ProfileName string `db:"profile_name" json:"profile_name"`
}

// InvoiceFilter provides filters for listing invoices.
type InvoiceFilter struct {
	ProfileID string
	Status    InvoiceStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// InvoiceEvent is published on the Redis change-notification channel when
// an invoice transitions.
type InvoiceEvent struct {
	InvoiceID string        `json:"invoice_id"`
	Reference string        `json:"reference"`
	Status    InvoiceStatus `json:"status"`
	At        time.Time     `json:"at"`
}
