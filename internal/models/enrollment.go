package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment. Cancellation
// is terminal.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// SlotSelection is the half-hour sub-unit chosen within a session block.
type SlotSelection string

const (
	SlotFirst  SlotSelection = "first"
	SlotSecond SlotSelection = "second"
	SlotBoth   SlotSelection = "both"
)

// Enrollment binds a profile to one session (hence its series), a plan and
// a selected slot. Each enrollment owns exactly one invoice from creation.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	ProfileID    string           `db:"profile_id" json:"profile_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	SessionID    string           `db:"session_id" json:"session_id"`
	SeriesID     string           `db:"series_id" json:"series_id"`
	PlanID       string           `db:"plan_id" json:"plan_id"`
	StartDate    time.Time        `db:"start_date" json:"start_date"`
	SelectedSlot SlotSelection    `db:"selected_slot" json:"selected_slot"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	CancelledAt  *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with profile, course and billing info.
type EnrollmentDetail struct {
	Enrollment
	ProfileName      string  `db:"profile_name" json:"profile_name"`
	CourseName       string  `db:"course_name" json:"course_name"`
	PlanName         string  `db:"plan_name" json:"plan_name"`
	InvoiceID        string  `db:"invoice_id" json:"invoice_id"`
	InvoiceReference string  `db:"invoice_reference" json:"invoice_reference"`
	InvoiceAmount    float64 `db:"invoice_amount" json:"invoice_amount"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	ProfileID string
	CourseID  string
	SeriesID  string
	SessionID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
