package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/consent/models"
	purposemodels "consentd/internal/purpose/models"
)

func newTestRecord(t *testing.T, principalID, purposeID uuid.UUID) *models.Record {
	t.Helper()
	record, err := models.NewRecord(
		models.PartySnapshot{ID: principalID, Name: "Asha Rao", Contact: "asha@example.com"},
		models.PartySnapshot{ID: uuid.New(), Name: "Acme", Contact: "dpo@acme.example"},
		models.PurposeSnapshot{
			ID:                  purposeID,
			Name:                "Marketing",
			DataCategories:      []string{"email"},
			LegalBasis:          purposemodels.BasisConsent,
			RetentionPeriodDays: 30,
		},
		time.Now(),
	)
	require.NoError(t, err)
	return record
}

func TestSave_DuplicateActiveRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	principal := uuid.New()
	purpose := uuid.New()

	first := newTestRecord(t, principal, purpose)
	require.NoError(t, s.Save(ctx, first))

	second := newTestRecord(t, principal, purpose)
	assert.ErrorIs(t, s.Save(ctx, second), ErrDuplicateActive)
}

func TestSave_LazilyExpiredStillBlocksUntilSwept(t *testing.T) {
	s := New()
	ctx := context.Background()
	principal := uuid.New()
	purpose := uuid.New()

	// Past its expiry but the sweeper has not flipped the stored status yet.
	stale := newTestRecord(t, principal, purpose)
	stale.GrantedAt = time.Now().Add(-60 * 24 * time.Hour)
	stale.ExpiresAt = time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, s.Save(ctx, stale))

	second := newTestRecord(t, principal, purpose)
	assert.ErrorIs(t, s.Save(ctx, second), ErrDuplicateActive,
		"stored status granted must block a new grant even past expiry")

	stale.Status = models.StatusExpired
	require.NoError(t, s.Update(ctx, stale))
	assert.NoError(t, s.Save(ctx, second))
}

func TestSave_AfterRevokeSucceeds(t *testing.T) {
	s := New()
	ctx := context.Background()
	principal := uuid.New()
	purpose := uuid.New()

	first := newTestRecord(t, principal, purpose)
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, first.Revoke(time.Now()))
	require.NoError(t, s.Update(ctx, first))

	second := newTestRecord(t, principal, purpose)
	assert.NoError(t, s.Save(ctx, second))
}

func TestSave_DifferentPurposeAllowed(t *testing.T) {
	s := New()
	ctx := context.Background()
	principal := uuid.New()

	require.NoError(t, s.Save(ctx, newTestRecord(t, principal, uuid.New())))
	require.NoError(t, s.Save(ctx, newTestRecord(t, principal, uuid.New())))
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	record := newTestRecord(t, uuid.New(), uuid.New())
	require.NoError(t, s.Save(ctx, record))

	got, err := s.FindByID(ctx, record.ID)
	require.NoError(t, err)
	got.Status = models.StatusRevoked

	again, err := s.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGranted, again.Status, "mutating a returned record must not affect the store")
}

func TestFindByID_NotFound(t *testing.T) {
	s := New()
	_, err := s.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByPrincipal_StatusFilterUsesComputedStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	principal := uuid.New()

	active := newTestRecord(t, principal, uuid.New())
	require.NoError(t, s.Save(ctx, active))

	// A record whose stored status is granted but whose expiry passed.
	stale := newTestRecord(t, principal, uuid.New())
	stale.GrantedAt = time.Now().Add(-40 * 24 * time.Hour)
	stale.ExpiresAt = time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, s.Save(ctx, stale))

	expired := models.StatusExpired
	got, err := s.ListByPrincipal(ctx, principal, &models.RecordFilter{Status: &expired})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

func TestListExpiredGranted(t *testing.T) {
	s := New()
	ctx := context.Background()

	stale := newTestRecord(t, uuid.New(), uuid.New())
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Save(ctx, stale))

	fresh := newTestRecord(t, uuid.New(), uuid.New())
	require.NoError(t, s.Save(ctx, fresh))

	got, err := s.ListExpiredGranted(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}
