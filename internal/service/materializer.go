package service

import (
	"time"

	"github.com/nataclub/natation-api/internal/models"
)

// Materializer expands a series template into concrete session dates. It is
// pure date arithmetic; persistence belongs to SeriesService.
type Materializer struct {
	location *time.Location
}

// NewMaterializer constructs a materializer anchored to the school's
// timezone. A nil location falls back to UTC.
func NewMaterializer(loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Materializer{location: loc}
}

// storedWeekday maps a calendar date to the 1..7 weekday convention where
// 1 is Sunday.
func storedWeekday(t time.Time) int {
	return int(t.Weekday()) + 1
}

// monthOccurrence returns which occurrence of its weekday the date is
// within its calendar month (the 1st..7th fall in occurrence 1, the
// 8th..14th in occurrence 2, and so on).
func monthOccurrence(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// Today returns the current date at midnight in the school timezone. It is
// the regeneration cutoff: sessions dated before it are history.
func (m *Materializer) Today() time.Time {
	now := time.Now().In(m.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Expand returns every session date for the series between from and the
// series end date, both inclusive. Sundays never yield a session even when
// listed, and the fifth occurrence of a weekday within a calendar month is
// skipped so every month bills at most four of each weekday.
func (m *Materializer) Expand(series *models.Series, from time.Time) []time.Time {
	start := series.StartDate
	if from.After(start) {
		start = from
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(series.EndDate.Year(), series.EndDate.Month(), series.EndDate.Day(), 0, 0, 0, 0, time.UTC)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		wd := storedWeekday(d)
		if wd == models.WeekdaySunday {
			continue
		}
		if !series.HasWeekday(wd) {
			continue
		}
		if monthOccurrence(d) >= 5 {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// Includes reports whether the series would materialize a session on the
// given date. Used to validate single-date operations against the template.
func (m *Materializer) Includes(series *models.Series, date time.Time) bool {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(series.StartDate) || day.After(series.EndDate) {
		return false
	}
	wd := storedWeekday(day)
	if wd == models.WeekdaySunday || !series.HasWeekday(wd) {
		return false
	}
	return monthOccurrence(day) < 5
}
