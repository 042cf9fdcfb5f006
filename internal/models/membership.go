package models

import "time"

// MembershipKind distinguishes the club products.
type MembershipKind string

const (
	MembershipKindClub   MembershipKind = "club"
	MembershipKindSaison MembershipKind = "saison"
)

// MembershipStatus represents the club membership lifecycle.
type MembershipStatus string

const (
	MembershipStatusPending   MembershipStatus = "PENDING"
	MembershipStatusActive    MembershipStatus = "ACTIVE"
	MembershipStatusExpired   MembershipStatus = "EXPIRED"
	MembershipStatusCancelled MembershipStatus = "CANCELLED"
)

// Membership is a club subscription for a profile, billed through its own
// invoice like enrollments are.
type Membership struct {
	ID          string           `db:"id" json:"id"`
	ProfileID   string           `db:"profile_id" json:"profile_id"`
	Kind        MembershipKind   `db:"kind" json:"kind"`
	Status      MembershipStatus `db:"status" json:"status"`
	StartDate   time.Time        `db:"start_date" json:"start_date"`
	EndDate     time.Time        `db:"end_date" json:"end_date"`
	Price       float64          `db:"price" json:"price"`
	ActivatedAt *time.Time       `db:"activated_at" json:"activated_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// MembershipDetail enriches Membership with profile and billing info.
type MembershipDetail struct {
	Membership
	ProfileName      string `db:"profile_name" json:"profile_name"`
	ProfileEmail     string `db:"profile_email" json:"profile_email"`
	InvoiceID        string `db:"invoice_id" json:"invoice_id"`
	InvoiceReference string `db:"invoice_reference" json:"invoice_reference"`
}

// MembershipFilter provides filters for listing memberships.
type MembershipFilter struct {
	ProfileID string
	Kind      MembershipKind
	Status    MembershipStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
