package service

import (
	"fmt"
	"time"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

// SlotResolver turns the pair of half-hour checkboxes into a slot selection
// and a billable duration. Admin and member flows share this single
// resolver so the two can never drift apart.
type SlotResolver struct{}

// NewSlotResolver constructs a resolver.
func NewSlotResolver() *SlotResolver {
	return &SlotResolver{}
}

// Resolve maps the selected half-hours to a slot and duration in hours.
// Picking only the second half-hour is an admin privilege; members must
// fill the first half-hour before the second becomes available.
func (r *SlotResolver) Resolve(first, second, isAdmin bool) (models.SlotSelection, int, error) {
	switch {
	case first && second:
		return models.SlotBoth, 2, nil
	case first:
		return models.SlotFirst, 1, nil
	case second:
		if !isAdmin {
			return "", 0, appErrors.Clone(appErrors.ErrSlotOrder, "")
		}
		return models.SlotSecond, 1, nil
	default:
		return "", 0, appErrors.Clone(appErrors.ErrValidation, "Veuillez sélectionner au moins une demi-heure")
	}
}

// TimeRange formats the effective range covered by a resolved slot as
// "HH:MM - HH:MM", offset from the series start time. The second half
// starts one hour in; both halves span the full two hours.
func (r *SlotResolver) TimeRange(startTime string, slot models.SlotSelection) string {
	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return ""
	}
	var from, to time.Time
	switch slot {
	case models.SlotSecond:
		from, to = start.Add(time.Hour), start.Add(2*time.Hour)
	case models.SlotBoth:
		from, to = start, start.Add(2*time.Hour)
	default:
		from, to = start, start.Add(time.Hour)
	}
	return fmt.Sprintf("%s - %s", from.Format("15:04"), to.Format("15:04"))
}

// Slots reports the half-hour flags encoded by a stored selection.
func (r *SlotResolver) Slots(slot models.SlotSelection) (first, second bool) {
	switch slot {
	case models.SlotBoth:
		return true, true
	case models.SlotFirst:
		return true, false
	case models.SlotSecond:
		return false, true
	default:
		return false, false
	}
}
