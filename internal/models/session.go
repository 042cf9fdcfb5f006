package models

import "time"

// SessionStatus represents the lifecycle of one materialized occurrence.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCancelled SessionStatus = "CANCELLED"
	SessionStatusDeleted   SessionStatus = "DELETED"
)

// Session is one concrete dated occurrence materialized from a series.
// Cancelling a session cancels that date for every enrollee; it never
// touches per-enrollment status.
type Session struct {
	ID            string        `db:"id" json:"id"`
	SeriesID      string        `db:"series_id" json:"series_id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	Date          time.Time     `db:"date" json:"date"`
	StartTime     string        `db:"start_time" json:"start_time"`
	DurationHours int           `db:"duration_hours" json:"duration_hours"`
	Status        SessionStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	SeriesID  string
	CourseID  string
	Status    SessionStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
