package models

import "time"

// CourseCategory partitions the catalog; plans are scoped per category.
type CourseCategory string

const (
	CategoryNatation    CourseCategory = "natation"
	CategoryAquafitness CourseCategory = "aquafitness"
	CategoryIntensive   CourseCategory = "intensive"
)

// ValidCategory reports whether the category is one of the known values.
func ValidCategory(c CourseCategory) bool {
	switch c {
	case CategoryNatation, CategoryAquafitness, CategoryIntensive:
		return true
	default:
		return false
	}
}

// Course is a catalog entry series and plans hang off.
type Course struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Category  CourseCategory `db:"category" json:"category"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// CourseFilter describes query params for listing courses.
type CourseFilter struct {
	Category  CourseCategory
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
