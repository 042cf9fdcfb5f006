package models

import "time"

// PaymentMethod enumerates the accepted settlement channels.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCheck    PaymentMethod = "check"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodMonCash  PaymentMethod = "moncash"
)

// ValidPaymentMethod reports whether m is a known method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCheck, PaymentMethodTransfer, PaymentMethodMonCash:
		return true
	default:
		return false
	}
}

// PaymentStatus represents the review lifecycle of a recorded payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Payment records money received against an invoice. Approval is a manual
// admin action; there is no gateway integration.
type Payment struct {
	ID         string        `db:"id" json:"id"`
	InvoiceID  string        `db:"invoice_id" json:"invoice_id"`
	Amount     float64       `db:"amount" json:"amount"`
	Method     PaymentMethod `db:"method" json:"method"`
	Note       string        `db:"note" json:"note"`
	Status     PaymentStatus `db:"status" json:"status"`
	ApprovedBy *string       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with invoice context.
type PaymentDetail struct {
	Payment
	InvoiceReference string  `db:"invoice_reference" json:"invoice_reference"`
	InvoiceAmount    float64 `db:"invoice_amount" json:"invoice_amount"`
	ProfileID        string  `db:"profile_id" json:"profile_id"`
	ProfileName      string  `db:"profile_name" json:"profile_name"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	InvoiceID string
	ProfileID string
	Status    PaymentStatus
	Method    PaymentMethod
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
