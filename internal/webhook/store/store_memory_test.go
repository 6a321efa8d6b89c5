package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/webhook/models"
)

func newTestRegistration(t *testing.T, fiduciaryID uuid.UUID) *models.Registration {
	t.Helper()
	reg, err := models.NewRegistration(fiduciaryID, "billing hooks", "https://hooks.example.com/consent", []models.EventType{models.EventConsentGranted})
	require.NoError(t, err)
	reg.Secret = "whsec_test"
	return reg
}

func TestRegistrationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewRegistrationStore()
	reg := newTestRegistration(t, uuid.New())

	require.NoError(t, s.Save(ctx, reg))

	found, err := s.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.URL, found.URL)
	assert.Equal(t, reg.Events, found.Events)
	assert.Equal(t, "whsec_test", found.Secret)
	assert.True(t, found.Active)
}

func TestRegistrationStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewRegistrationStore()
	reg := newTestRegistration(t, uuid.New())
	require.NoError(t, s.Save(ctx, reg))

	found, err := s.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	found.Name = "mutated"
	found.Events[0] = models.EventWildcard

	again, err := s.FindByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing hooks", again.Name)
	assert.Equal(t, models.EventConsentGranted, again.Events[0])
}

func TestRegistrationStoreCountActive(t *testing.T) {
	ctx := context.Background()
	s := NewRegistrationStore()
	fiduciaryID := uuid.New()

	active := newTestRegistration(t, fiduciaryID)
	require.NoError(t, s.Save(ctx, active))

	disabled := newTestRegistration(t, fiduciaryID)
	disabled.Active = false
	require.NoError(t, s.Save(ctx, disabled))

	other := newTestRegistration(t, uuid.New())
	require.NoError(t, s.Save(ctx, other))

	count, err := s.CountActiveByFiduciary(ctx, fiduciaryID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegistrationStoreListActiveSkipsDisabled(t *testing.T) {
	ctx := context.Background()
	s := NewRegistrationStore()

	active := newTestRegistration(t, uuid.New())
	require.NoError(t, s.Save(ctx, active))

	disabled := newTestRegistration(t, uuid.New())
	disabled.Active = false
	require.NoError(t, s.Save(ctx, disabled))

	regs, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, active.ID, regs[0].ID)
}

func TestRegistrationStoreDeleteUnknown(t *testing.T) {
	s := NewRegistrationStore()
	err := s.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeliveryLogNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	l := NewDeliveryLog()
	regID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, &models.DeliveryAttempt{
			ID:             uuid.New(),
			RegistrationID: regID,
			DeliveryID:     uuid.New(),
			EventType:      models.EventConsentGranted,
			Attempt:        1,
			Status:         models.AttemptSuccess,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Another registration's attempt must not leak in.
	require.NoError(t, l.Append(ctx, &models.DeliveryAttempt{
		ID:             uuid.New(),
		RegistrationID: uuid.New(),
		CreatedAt:      base.Add(time.Hour),
	}))

	attempts, err := l.ListByRegistration(ctx, regID, 3)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, base.Add(4*time.Minute), attempts[0].CreatedAt)
	assert.Equal(t, base.Add(2*time.Minute), attempts[2].CreatedAt)
}

func TestDeliveryLogCountByStatus(t *testing.T) {
	ctx := context.Background()
	l := NewDeliveryLog()
	regID := uuid.New()

	for _, status := range []models.AttemptStatus{models.AttemptSuccess, models.AttemptFailed, models.AttemptFailed} {
		require.NoError(t, l.Append(ctx, &models.DeliveryAttempt{
			ID:             uuid.New(),
			RegistrationID: regID,
			Status:         status,
			CreatedAt:      time.Now(),
		}))
	}

	counts, err := l.CountByStatus(ctx, regID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.AttemptSuccess])
	assert.Equal(t, 2, counts[models.AttemptFailed])
}
