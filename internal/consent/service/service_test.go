package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"consentd/internal/audit"
	"consentd/internal/consent/models"
	"consentd/internal/consent/receipt"
	"consentd/internal/consent/store"
	"consentd/internal/platform/middleware"
	purposestore "consentd/internal/purpose/store"
	webhookmodels "consentd/internal/webhook/models"
	dErrors "consentd/pkg/domain-errors"
)

func (s *ServiceSuite) TestGrantSuccess() {
	principalID := uuid.New()
	purpose := s.newTestPurpose(uuid.New())
	actor := s.principal(principalID)

	s.mockPurposes.EXPECT().FindByID(gomock.Any(), purpose.ID).Return(purpose, nil)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	var published webhookmodels.Event
	s.mockEvents.EXPECT().Enqueue(gomock.Any()).DoAndReturn(func(event webhookmodels.Event) bool {
		published = event
		return true
	})

	record, err := s.service.Grant(context.Background(), actor, audit.Origin{IP: "203.0.113.7"}, purpose.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusGranted, record.Status)
	s.Equal(principalID, record.Principal.ID)
	s.Equal(purpose.FiduciaryID, record.Fiduciary.ID)
	s.Equal("Meridian Savings Bank", record.Fiduciary.Name)
	s.Equal(s.now, record.GrantedAt)
	s.Equal(s.now.Add(365*24*time.Hour), record.ExpiresAt)
	s.NotEqual(uuid.Nil, record.ReceiptID)

	s.True(strings.HasPrefix(record.ReceiptSignature, receipt.SignaturePrefix))
	s.True(receipt.NewSigner().Verify(receipt.FieldsFromRecord(record), record.ReceiptSignature))

	s.Equal(webhookmodels.EventConsentGranted, published.Type)
	s.Equal(purpose.FiduciaryID, published.FiduciaryID)
	s.Equal(record.ID.String(), published.Data["consent_uuid"])
	s.Equal("asha@example.com", published.Data["user_email"])
	s.Equal(purpose.Name, published.Data["purpose_name"])

	entries, err := s.auditStore.ListByActor(context.Background(), actor.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionConsentGranted, entries[0].Action)
	s.Equal("203.0.113.7", entries[0].IP)
}

func (s *ServiceSuite) TestGrantUnknownPurpose() {
	actor := s.principal(uuid.New())
	purposeID := uuid.New()

	s.mockPurposes.EXPECT().FindByID(gomock.Any(), purposeID).Return(nil, purposestore.ErrNotFound)

	_, err := s.service.Grant(context.Background(), actor, audit.Origin{}, purposeID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGrantInactivePurpose() {
	actor := s.principal(uuid.New())
	purpose := s.newTestPurpose(uuid.New())
	purpose.Active = false

	s.mockPurposes.EXPECT().FindByID(gomock.Any(), purpose.ID).Return(purpose, nil)

	_, err := s.service.Grant(context.Background(), actor, audit.Origin{}, purpose.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGrantDuplicateActive() {
	actor := s.principal(uuid.New())
	purpose := s.newTestPurpose(uuid.New())

	s.mockPurposes.EXPECT().FindByID(gomock.Any(), purpose.ID).Return(purpose, nil)
	s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(store.ErrDuplicateActive)

	_, err := s.service.Grant(context.Background(), actor, audit.Origin{}, purpose.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestGrantRequiresPrincipal() {
	fiduciary := middleware.Identity{ID: uuid.New().String(), Type: middleware.ActorFiduciary}

	_, err := s.service.Grant(context.Background(), fiduciary, audit.Origin{}, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestRevokeSuccess() {
	principalID := uuid.New()
	purpose := s.newTestPurpose(uuid.New())
	record := s.grantedRecord(principalID, purpose, s.now.Add(-time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)
	s.mockStore.EXPECT().Update(gomock.Any(), record).Return(nil)
	s.mockEvents.EXPECT().Enqueue(gomock.Any()).DoAndReturn(func(event webhookmodels.Event) bool {
		s.Equal(webhookmodels.EventConsentRevoked, event.Type)
		return true
	})

	revoked, err := s.service.Revoke(context.Background(), s.principal(principalID), audit.Origin{}, record.ID, "no longer interested")
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, revoked.Status)
	s.Require().NotNil(revoked.RevokedAt)
	s.Equal(s.now, *revoked.RevokedAt)
}

func (s *ServiceSuite) TestRevokeAlreadyRevoked() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))
	s.Require().NoError(record.Revoke(s.now.Add(-time.Minute)))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	_, err := s.service.Revoke(context.Background(), s.principal(principalID), audit.Origin{}, record.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestRevokeExpiredIsInvalid() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-400*24*time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	_, err := s.service.Revoke(context.Background(), s.principal(principalID), audit.Origin{}, record.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestRenewExtendsFromNow() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-400*24*time.Hour))
	s.Equal(models.StatusExpired, record.ComputeStatus(s.now))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)
	s.mockStore.EXPECT().Update(gomock.Any(), record).Return(nil)

	renewed, err := s.service.Renew(context.Background(), s.principal(principalID), audit.Origin{}, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusGranted, renewed.Status)
	s.Equal(s.now.Add(365*24*time.Hour), renewed.ExpiresAt)
	s.Require().NotNil(renewed.RenewedAt)
}

func (s *ServiceSuite) TestRenewRevokedFails() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))
	s.Require().NoError(record.Revoke(s.now.Add(-time.Minute)))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	_, err := s.service.Renew(context.Background(), s.principal(principalID), audit.Origin{}, record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestGetHidesOtherPrincipals() {
	record := s.grantedRecord(uuid.New(), s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	_, err := s.service.Get(context.Background(), s.principal(uuid.New()), record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestHistoryReturnsConsentTrail() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))

	s.Require().NoError(s.auditStore.Append(context.Background(), audit.Entry{
		ID:           uuid.New(),
		Action:       audit.ActionConsentGranted,
		ResourceType: "consent",
		ResourceID:   record.ID.String(),
	}))
	s.Require().NoError(s.auditStore.Append(context.Background(), audit.Entry{
		ID:           uuid.New(),
		Action:       audit.ActionConsentRevoked,
		ResourceType: "consent",
		ResourceID:   record.ID.String(),
	}))
	// An unrelated consent's entry must not leak in.
	s.Require().NoError(s.auditStore.Append(context.Background(), audit.Entry{
		ID:           uuid.New(),
		Action:       audit.ActionConsentGranted,
		ResourceType: "consent",
		ResourceID:   uuid.NewString(),
	}))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	entries, err := s.service.History(context.Background(), s.principal(principalID), record.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionConsentGranted, entries[0].Action)
	s.Equal(audit.ActionConsentRevoked, entries[1].Action)
}

func (s *ServiceSuite) TestHistoryHidesOtherPrincipals() {
	record := s.grantedRecord(uuid.New(), s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	_, err := s.service.History(context.Background(), s.principal(uuid.New()), record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGetReportsLazyExpiry() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-400*24*time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	view, err := s.service.Get(context.Background(), s.principal(principalID), record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, view.Status)
	s.Equal(models.StatusGranted, view.Record.Status)
	s.False(view.ExpiringSoon)
}

func (s *ServiceSuite) TestGetFlagsExpiringSoon() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-358*24*time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	view, err := s.service.Get(context.Background(), s.principal(principalID), record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusGranted, view.Status)
	s.True(view.ExpiringSoon)
	s.Equal(7, view.DaysUntilExpy)
}

func (s *ServiceSuite) TestListPassesFilter() {
	principalID := uuid.New()
	status := models.StatusGranted
	filter := &models.RecordFilter{Status: &status}
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))

	s.mockStore.EXPECT().ListByPrincipal(gomock.Any(), principalID, filter).Return([]*models.Record{record}, nil)

	views, err := s.service.List(context.Background(), s.principal(principalID), filter)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(record.ID, views[0].Record.ID)
}

func (s *ServiceSuite) TestReceiptRoundTrip() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	view, err := s.service.Receipt(context.Background(), s.principal(principalID), record.ID)
	s.Require().NoError(err)
	s.True(view.Verified)
	s.Equal(record.ReceiptSignature, view.Signature)
	s.Equal(record.ReceiptID.String(), view.Fields.ReceiptID)
}

func (s *ServiceSuite) TestReceiptDetectsTamper() {
	principalID := uuid.New()
	record := s.grantedRecord(principalID, s.newTestPurpose(uuid.New()), s.now.Add(-time.Hour))
	record.Purpose.Name = "telemetry_sharing"

	s.mockStore.EXPECT().FindByID(gomock.Any(), record.ID).Return(record, nil)

	view, err := s.service.Receipt(context.Background(), s.principal(principalID), record.ID)
	s.Require().NoError(err)
	s.False(view.Verified)
}

func (s *ServiceSuite) TestMarkExpired() {
	purpose := s.newTestPurpose(uuid.New())
	stale := s.grantedRecord(uuid.New(), purpose, s.now.Add(-400*24*time.Hour))

	s.mockStore.EXPECT().ListExpiredGranted(gomock.Any(), s.now, 100).Return([]*models.Record{stale}, nil)
	s.mockStore.EXPECT().Update(gomock.Any(), stale).Return(nil)
	s.mockEvents.EXPECT().Enqueue(gomock.Any()).DoAndReturn(func(event webhookmodels.Event) bool {
		s.Equal(webhookmodels.EventConsentExpired, event.Type)
		return true
	})

	flipped, err := s.service.MarkExpired(context.Background(), s.now, 100)
	s.Require().NoError(err)
	s.Equal(1, flipped)
	s.Equal(models.StatusExpired, stale.Status)

	entries, err := s.auditStore.ListByActor(context.Background(), "expiry-sweep")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionConsentExpired, entries[0].Action)
}
