package models

import (
	"time"

	"github.com/lib/pq"
)

// SeriesStatus represents the lifecycle of a recurring slot template.
type SeriesStatus string

const (
	SeriesStatusActive    SeriesStatus = "ACTIVE"
	SeriesStatusCancelled SeriesStatus = "CANCELLED"
)

// BookingMode controls who may enroll into a series.
type BookingMode string

const (
	BookingModeOpen      BookingMode = "OPEN"
	BookingModeAdminOnly BookingMode = "ADMIN_ONLY"
)

// Weekday constants in the stored 1..7 convention (1 = Sunday).
const (
	WeekdaySunday   = 1
	WeekdaySaturday = 7
)

// Series is the recurring weekly time-slot template for a course. It holds
// no enrollments itself; materialized sessions do.
type Series struct {
	ID            string        `db:"id" json:"id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	Weekdays      pq.Int64Array `db:"weekdays" json:"weekdays"`
	StartTime     string        `db:"start_time" json:"start_time"`
	DurationHours int           `db:"duration_hours" json:"duration_hours"`
	Capacity      int           `db:"capacity" json:"capacity"`
	StartDate     time.Time     `db:"start_date" json:"start_date"`
	EndDate       time.Time     `db:"end_date" json:"end_date"`
	BookingMode   BookingMode   `db:"booking_mode" json:"booking_mode"`
	Status        SeriesStatus  `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// HasWeekday reports whether the stored weekday set contains d (1..7).
func (s *Series) HasWeekday(d int) bool {
	for _, w := range s.Weekdays {
		if int(w) == d {
			return true
		}
	}
	return false
}

// SeriesDetail enriches Series with course info and the computed
// remaining capacity used by listings.
type SeriesDetail struct {
	Series
	CourseName        string         `db:"course_name" json:"course_name"`
	CourseCategory    CourseCategory `db:"course_category" json:"course_category"`
	CapacityRemaining int            `db:"-" json:"capacity_remaining"`
}

// SeriesFilter describes query params for listing series.
type SeriesFilter struct {
	CourseID  string
	Status    SeriesStatus
	Weekday   int
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RegenerationResult reports the outcome of (re)materializing a series.
// Failures are per-date and deliberately do not roll back the series row.
type RegenerationResult struct {
	SeriesID    string   `json:"series_id"`
	Created     int      `json:"created"`
	Deleted     int      `json:"deleted"`
	FailedDates []string `json:"failed_dates,omitempty"`
	Message     string   `json:"message"`
}

// Partial reports whether some session inserts failed.
func (r *RegenerationResult) Partial() bool {
	return len(r.FailedDates) > 0
}
