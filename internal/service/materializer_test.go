package service

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/nataclub/natation-api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMaterializerExpandJanuary(t *testing.T) {
	m := NewMaterializer(time.UTC)

	// Tuesdays and Thursdays across January 2026. January 1st is a
	// Thursday, so Thursdays land on 1, 8, 15, 22 and 29; the 29th is the
	// fifth Thursday of the month and must be skipped.
	series := &models.Series{
		Weekdays:  pq.Int64Array{3, 5},
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.January, 31),
	}

	dates := m.Expand(series, series.StartDate)
	require.Len(t, dates, 8)

	want := []time.Time{
		day(2026, time.January, 1),
		day(2026, time.January, 6),
		day(2026, time.January, 8),
		day(2026, time.January, 13),
		day(2026, time.January, 15),
		day(2026, time.January, 20),
		day(2026, time.January, 22),
		day(2026, time.January, 27),
	}
	require.Equal(t, want, dates)
}

func TestMaterializerExpandSkipsSunday(t *testing.T) {
	m := NewMaterializer(time.UTC)

	// Sunday is weekday 1 in the stored convention. Even when a template
	// lists it, no session may ever fall on a Sunday.
	series := &models.Series{
		Weekdays:  pq.Int64Array{1, 2},
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.January, 14),
	}

	dates := m.Expand(series, series.StartDate)
	require.Equal(t, []time.Time{
		day(2026, time.January, 5),
		day(2026, time.January, 12),
	}, dates)
}

func TestMaterializerExpandFromCutoff(t *testing.T) {
	m := NewMaterializer(time.UTC)

	series := &models.Series{
		Weekdays:  pq.Int64Array{3, 5},
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.January, 31),
	}

	// Regeneration from mid-month only yields future dates.
	dates := m.Expand(series, day(2026, time.January, 15))
	require.Equal(t, []time.Time{
		day(2026, time.January, 15),
		day(2026, time.January, 20),
		day(2026, time.January, 22),
		day(2026, time.January, 27),
	}, dates)
}

func TestMaterializerExpandIsIdempotent(t *testing.T) {
	m := NewMaterializer(time.UTC)

	series := &models.Series{
		Weekdays:  pq.Int64Array{3},
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.March, 31),
	}

	first := m.Expand(series, series.StartDate)
	second := m.Expand(series, series.StartDate)
	require.Equal(t, first, second)
}

func TestMaterializerIncludes(t *testing.T) {
	m := NewMaterializer(time.UTC)

	series := &models.Series{
		Weekdays:  pq.Int64Array{5},
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.January, 31),
	}

	require.True(t, m.Includes(series, day(2026, time.January, 8)))
	// Fifth Thursday.
	require.False(t, m.Includes(series, day(2026, time.January, 29)))
	// Outside the template window.
	require.False(t, m.Includes(series, day(2026, time.February, 5)))
	// Wrong weekday.
	require.False(t, m.Includes(series, day(2026, time.January, 7)))
}
