package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nataclub/natation-api/internal/models"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

func TestSlotResolverResolve(t *testing.T) {
	r := NewSlotResolver()

	slot, hours, err := r.Resolve(true, true, false)
	require.NoError(t, err)
	require.Equal(t, models.SlotBoth, slot)
	require.Equal(t, 2, hours)

	slot, hours, err = r.Resolve(true, false, false)
	require.NoError(t, err)
	require.Equal(t, models.SlotFirst, slot)
	require.Equal(t, 1, hours)
}

func TestSlotResolverSecondAloneRequiresAdmin(t *testing.T) {
	r := NewSlotResolver()

	_, _, err := r.Resolve(false, true, false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrSlotOrder.Code, appErr.Code)

	slot, hours, err := r.Resolve(false, true, true)
	require.NoError(t, err)
	require.Equal(t, models.SlotSecond, slot)
	require.Equal(t, 1, hours)
}

func TestSlotResolverTimeRange(t *testing.T) {
	r := NewSlotResolver()

	require.Equal(t, "08:00 - 09:00", r.TimeRange("08:00", models.SlotFirst))
	require.Equal(t, "09:00 - 10:00", r.TimeRange("08:00", models.SlotSecond))
	require.Equal(t, "08:00 - 10:00", r.TimeRange("08:00", models.SlotBoth))
	require.Equal(t, "", r.TimeRange("not-a-time", models.SlotFirst))
}

func TestSlotResolverEmptySelection(t *testing.T) {
	r := NewSlotResolver()

	_, _, err := r.Resolve(false, false, true)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
