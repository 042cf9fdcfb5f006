package pdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReceiptRendererRender(t *testing.T) {
	renderer := NewReceiptRenderer("Club Natation Delmas", "Delmas 33, Port-au-Prince")
	paidAt := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	data, err := renderer.Render(Receipt{
		Reference:   "INV-2026-000042",
		IssuedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ProfileName: "Marie Joseph",
		Description: "Inscription natation - 1h / semaine",
		Amount:      2500,
		Status:      "PAID",
		PaidAt:      &paidAt,
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, "%PDF", string(data[:4]))
}

func TestReceiptRendererRequiresReference(t *testing.T) {
	renderer := NewReceiptRenderer("", "")
	_, err := renderer.Render(Receipt{})
	require.Error(t, err)
}
