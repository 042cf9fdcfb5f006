package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/internal/models"
	"github.com/nataclub/natation-api/internal/repository"
	appErrors "github.com/nataclub/natation-api/pkg/errors"
)

type mockMembershipStore struct {
	memberships  map[string]models.Membership
	invoices     map[string]models.Invoice
	activated    []string
	active       map[string]models.Membership
	refCollision bool
}

func (m *mockMembershipStore) List(ctx context.Context, filter models.MembershipFilter) ([]models.MembershipDetail, int, error) {
	return nil, 0, nil
}

func (m *mockMembershipStore) FindByID(ctx context.Context, id string) (*models.Membership, error) {
	if ms, ok := m.memberships[id]; ok {
		return &ms, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMembershipStore) CreateWithInvoice(ctx context.Context, membership *models.Membership, invoice *models.Invoice) error {
	if m.refCollision {
		return repository.ErrDuplicateReference
	}
	if m.memberships == nil {
		m.memberships = make(map[string]models.Membership)
		m.invoices = make(map[string]models.Invoice)
	}
	if membership.ID == "" {
		membership.ID = "new-membership"
	}
	membership.Status = models.MembershipStatusPending
	if invoice.ID == "" {
		invoice.ID = "new-invoice"
	}
	invoice.MembershipID = &membership.ID
	invoice.ProfileID = membership.ProfileID
	m.memberships[membership.ID] = *membership
	m.invoices[membership.ID] = *invoice
	return nil
}

func (m *mockMembershipStore) Activate(ctx context.Context, id string, activatedAt time.Time) error {
	if ms, ok := m.memberships[id]; ok {
		ms.Status = models.MembershipStatusActive
		ms.ActivatedAt = &activatedAt
		m.memberships[id] = ms
	}
	m.activated = append(m.activated, id)
	return nil
}

func (m *mockMembershipStore) UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error {
	if ms, ok := m.memberships[id]; ok {
		ms.Status = status
		m.memberships[id] = ms
	}
	return nil
}

func (m *mockMembershipStore) FindActiveByProfile(ctx context.Context, profileID string) (*models.Membership, error) {
	if ms, ok := m.active[profileID]; ok {
		return &ms, nil
	}
	return nil, sql.ErrNoRows
}

type activationNotice struct {
	to, kind, endDate string
}

type mockMembershipNotifier struct {
	sent []activationNotice
}

func (m *mockMembershipNotifier) NotifyMembershipActivated(to, fullName, kind string, endDate string) {
	m.sent = append(m.sent, activationNotice{to: to, kind: kind, endDate: endDate})
}

func membershipFixture() (*mockMembershipStore, *mockProfileReader, *mockMembershipNotifier) {
	store := &mockMembershipStore{}
	profiles := &mockProfileReader{profiles: map[string]models.Profile{
		"prof-1": {ID: "prof-1", FullName: "Marie Joseph", Email: "marie@example.ht"},
	}}
	return store, profiles, &mockMembershipNotifier{}
}

func TestMembershipServiceCreate(t *testing.T) {
	store, profiles, notifier := membershipFixture()
	svc := NewMembershipService(store, profiles, notifier, validator.New(), zap.NewNop())

	membership, err := svc.Create(context.Background(), CreateMembershipRequest{
		ProfileID: "prof-1",
		Kind:      "saison",
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.June, 30),
		Price:     5000,
	}, "prof-1", false)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipStatusPending, membership.Status)

	invoice := store.invoices[membership.ID]
	assert.Equal(t, membership.ID, *invoice.MembershipID)
	assert.Equal(t, 5000.0, invoice.Amount)
	assert.Contains(t, invoice.Reference, "FAC-")
}

func TestMembershipServiceCreateSelfOnly(t *testing.T) {
	store, profiles, notifier := membershipFixture()
	svc := NewMembershipService(store, profiles, notifier, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateMembershipRequest{
		ProfileID: "prof-1",
		Kind:      "club",
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.December, 31),
		Price:     2000,
	}, "prof-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMembershipServiceCreateAlreadyActive(t *testing.T) {
	store, profiles, notifier := membershipFixture()
	store.active = map[string]models.Membership{
		"prof-1": {ID: "mem-0", ProfileID: "prof-1", Status: models.MembershipStatusActive},
	}
	svc := NewMembershipService(store, profiles, notifier, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateMembershipRequest{
		ProfileID: "prof-1",
		Kind:      "club",
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.December, 31),
		Price:     2000,
	}, "prof-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestMembershipServiceCreateDuplicateReference(t *testing.T) {
	store, profiles, notifier := membershipFixture()
	store.refCollision = true
	svc := NewMembershipService(store, profiles, notifier, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateMembershipRequest{
		ProfileID: "prof-1",
		Kind:      "club",
		StartDate: day(2026, time.January, 1),
		EndDate:   day(2026, time.December, 31),
		Price:     2000,
	}, "prof-1", false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestMembershipServiceActivatePaid(t *testing.T) {
	store, profiles, notifier := membershipFixture()
	store.memberships = map[string]models.Membership{
		"mem-1": {ID: "mem-1", ProfileID: "prof-1", Kind: models.MembershipKindSaison, Status: models.MembershipStatusPending, EndDate: day(2026, time.June, 30)},
	}
	svc := NewMembershipService(store, profiles, notifier, validator.New(), zap.NewNop())

	svc.ActivatePaid(context.Background(), "mem-1", time.Now().UTC())
	assert.Contains(t, store.activated, "mem-1")
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "marie@example.ht", notifier.sent[0].to)
	assert.Equal(t, "saison", notifier.sent[0].kind)

	// A second settlement on the same membership is a no-op.
	svc.ActivatePaid(context.Background(), "mem-1", time.Now().UTC())
	assert.Len(t, store.activated, 1)
}
