package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/audit"
	"consentd/internal/platform/middleware"
	"consentd/internal/webhook/models"
	"consentd/internal/webhook/store"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/secrets"
)

type fakeTester struct {
	lastReg *models.Registration
	attempt *models.DeliveryAttempt
}

func (f *fakeTester) Test(_ context.Context, reg *models.Registration) (*models.DeliveryAttempt, error) {
	f.lastReg = reg
	if f.attempt != nil {
		return f.attempt, nil
	}
	return &models.DeliveryAttempt{
		ID:             uuid.New(),
		RegistrationID: reg.ID,
		EventType:      models.EventTest,
		Attempt:        1,
		Status:         models.AttemptSuccess,
	}, nil
}

type serviceFixture struct {
	regs       *store.InMemoryRegistrationStore
	deliveries *store.InMemoryDeliveryLog
	tester     *fakeTester
	auditStore *audit.InMemoryStore
	service    *Service
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		regs:       store.NewRegistrationStore(),
		deliveries: store.NewDeliveryLog(),
		tester:     &fakeTester{},
		auditStore: audit.NewInMemoryStore(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.regs, f.deliveries, f.tester, audit.NewPublisher(f.auditStore), logger)
	return f
}

func fiduciary(id uuid.UUID) middleware.Identity {
	return middleware.Identity{
		ID:    id.String(),
		Type:  middleware.ActorFiduciary,
		Name:  "Meridian Savings Bank",
		Email: "dpo@meridian.example",
	}
}

func createRequest() CreateRequest {
	return CreateRequest{
		Name:   "billing hooks",
		URL:    "https://hooks.example.com/consent",
		Events: []models.EventType{models.EventConsentGranted, models.EventConsentRevoked},
	}
}

func TestCreateReturnsSecretOnce(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())

	created, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.Secret, secrets.WebhookSecretPrefix))
	require.NoError(t, secrets.Verify(created.Secret, created.Registration.SecretHash))

	// The stored registration keeps the secret for signing but the outward
	// JSON form must not carry it.
	found, err := f.regs.FindByID(context.Background(), created.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Secret, found.Secret)

	entries, err := f.auditStore.ListByActor(context.Background(), actor.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionWebhookCreated, entries[0].Action)
}

func TestCreateEnforcesActiveLimit(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())

	for i := 0; i < models.MaxActiveRegistrations; i++ {
		_, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
		require.NoError(t, err)
	}
	_, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCreateRejectsPrincipals(t *testing.T) {
	f := newFixture(t)
	principal := middleware.Identity{ID: uuid.New().String(), Type: middleware.ActorPrincipal}

	_, err := f.service.Create(context.Background(), principal, audit.Origin{}, createRequest())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())
	created, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	require.NoError(t, err)

	newName := "ops hooks"
	updated, err := f.service.Update(context.Background(), actor, audit.Origin{}, created.Registration.ID, UpdateRequest{
		Name:   &newName,
		Events: []models.EventType{models.EventWildcard},
	})
	require.NoError(t, err)
	assert.Equal(t, "ops hooks", updated.Name)
	assert.Equal(t, []models.EventType{models.EventWildcard}, updated.Events)
	assert.Equal(t, created.Registration.URL, updated.URL)
}

func TestUpdateReactivationCountsAgainstLimit(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())

	first, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	require.NoError(t, err)

	off := false
	_, err = f.service.Update(context.Background(), actor, audit.Origin{}, first.Registration.ID, UpdateRequest{Active: &off})
	require.NoError(t, err)

	for i := 0; i < models.MaxActiveRegistrations; i++ {
		_, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
		require.NoError(t, err)
	}

	on := true
	_, err = f.service.Update(context.Background(), actor, audit.Origin{}, first.Registration.ID, UpdateRequest{Active: &on})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestOwnershipHidesForeignRegistrations(t *testing.T) {
	f := newFixture(t)
	owner := fiduciary(uuid.New())
	created, err := f.service.Create(context.Background(), owner, audit.Origin{}, createRequest())
	require.NoError(t, err)

	other := fiduciary(uuid.New())
	_, err = f.service.Get(context.Background(), other, created.Registration.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	err = f.service.Delete(context.Background(), other, audit.Origin{}, created.Registration.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRotateSecretInvalidatesOld(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())
	created, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	require.NoError(t, err)

	rotated, err := f.service.RotateSecret(context.Background(), actor, audit.Origin{}, created.Registration.ID)
	require.NoError(t, err)
	assert.NotEqual(t, created.Secret, rotated.Secret)

	found, err := f.regs.FindByID(context.Background(), created.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, rotated.Secret, found.Secret)
	require.NoError(t, secrets.Verify(rotated.Secret, found.SecretHash))
	assert.Error(t, secrets.Verify(created.Secret, found.SecretHash))
}

func TestSendTestUsesStoredRegistration(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())
	created, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	require.NoError(t, err)

	attempt, err := f.service.SendTest(context.Background(), actor, created.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptSuccess, attempt.Status)
	require.NotNil(t, f.tester.lastReg)
	assert.Equal(t, created.Registration.ID, f.tester.lastReg.ID)
	assert.Equal(t, created.Secret, f.tester.lastReg.Secret)
}

func TestDeliveriesCapsLimit(t *testing.T) {
	f := newFixture(t)
	actor := fiduciary(uuid.New())
	created, err := f.service.Create(context.Background(), actor, audit.Origin{}, createRequest())
	require.NoError(t, err)

	for i := 0; i < models.MaxDeliveryPage+10; i++ {
		require.NoError(t, f.deliveries.Append(context.Background(), &models.DeliveryAttempt{
			ID:             uuid.New(),
			RegistrationID: created.Registration.ID,
			Status:         models.AttemptSuccess,
		}))
	}

	page, err := f.service.Deliveries(context.Background(), actor, created.Registration.ID, 0)
	require.NoError(t, err)
	assert.Len(t, page.Attempts, models.MaxDeliveryPage)
	assert.Equal(t, models.MaxDeliveryPage+10, page.Counts[models.AttemptSuccess])
}
