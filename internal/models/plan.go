package models

import "time"

// Plan is a priced duration unit scoped to a course category: 1h or 2h
// weekly blocks, or a multi-week intensive package.
type Plan struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Category      CourseCategory `db:"category" json:"category"`
	DurationHours int            `db:"duration_hours" json:"duration_hours"`
	Weeks         *int           `db:"weeks" json:"weeks,omitempty"`
	Price         float64        `db:"price" json:"price"`
	Public        bool           `db:"public" json:"public"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// PlanFilter describes query params for listing plans. IncludeInternal is
// only honoured for admin callers.
type PlanFilter struct {
	Category        CourseCategory
	DurationHours   int
	IncludeInternal bool
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}
