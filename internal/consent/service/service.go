package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"consentd/internal/audit"
	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/receipt"
	"consentd/internal/consent/store"
	"consentd/internal/platform/middleware"
	purposemodels "consentd/internal/purpose/models"
	purposestore "consentd/internal/purpose/store"
	webhookmodels "consentd/internal/webhook/models"
	dErrors "consentd/pkg/domain-errors"
)

// PurposeRegistry resolves purposes for new grants. An inactive purpose is
// ineligible; the ledger treats it as not found.
//
// Error Contract:
// - FindByID returns purposestore.ErrNotFound when no purpose exists
type PurposeRegistry interface {
	FindByID(ctx context.Context, id uuid.UUID) (*purposemodels.Purpose, error)
}

// EventSink receives lifecycle events for webhook fan-out. Enqueue must not
// block: the ledger transition has already committed and a slow consumer
// must never delay the caller.
type EventSink interface {
	Enqueue(event webhookmodels.Event) bool
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the authoritative state machine for consent records. It owns
// lifecycle transitions, receipt synthesis, audit emission, and event
// publication; webhook delivery failures never surface here.
type Service struct {
	store    store.Store
	purposes PurposeRegistry
	signer   *receipt.Signer
	auditor  *audit.Publisher
	events   EventSink
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(st store.Store, purposes PurposeRegistry, signer *receipt.Signer, auditor *audit.Publisher, events EventSink, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:    st,
		purposes: purposes,
		signer:   signer,
		auditor:  auditor,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ConsentView is a record plus its read-time classification.
type ConsentView struct {
	Record        *models.Record
	Status        models.Status
	ExpiringSoon  bool
	DaysUntilExpy int
}

// ReceiptView is a recomputed receipt with its verification result.
type ReceiptView struct {
	Fields    receipt.Fields
	Signature string
	Verified  bool
	IssuedAt  time.Time
}

// Grant creates a consent for the calling principal, synthesizes its signed
// receipt, and emits consent.granted. At most one active consent may exist
// per (principal, purpose); a duplicate grant is a conflict, never a merge.
func (s *Service) Grant(ctx context.Context, actor middleware.Identity, origin audit.Origin, purposeID uuid.UUID) (*models.Record, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveGrantLatency(time.Since(start).Seconds())
		}
	}()

	principalID, err := s.requirePrincipal(actor)
	if err != nil {
		return nil, err
	}

	purpose, err := s.purposes.FindByID(ctx, purposeID)
	if err != nil {
		if errors.Is(err, purposestore.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "purpose not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read purpose")
	}
	if !purpose.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "purpose is no longer active")
	}

	now := s.now()
	record, err := models.NewRecord(
		models.PartySnapshot{ID: principalID, Name: actor.Name, Contact: actor.Email},
		models.PartySnapshot{ID: purpose.FiduciaryID, Name: purpose.FiduciaryName, Contact: purpose.FiduciaryContact},
		models.SnapshotPurpose(purpose),
		now,
	)
	if err != nil {
		return nil, err
	}
	record.ReceiptSignature = s.signer.Sign(receipt.FieldsFromRecord(record))

	if err := s.store.Save(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateActive) {
			if s.metrics != nil {
				s.metrics.IncrementGrantConflicts()
			}
			return nil, dErrors.New(dErrors.CodeConflict, "active consent already exists for this purpose")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent")
	}

	detail, _ := json.Marshal(map[string]any{
		"purpose_id":   purpose.ID,
		"purpose_name": purpose.Name,
		"expires_at":   record.ExpiresAt,
	})
	s.emitAudit(ctx, audit.Entry{
		Action:       audit.ActionConsentGranted,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		ResourceType: "consent",
		ResourceID:   record.ID.String(),
		Detail:       detail,
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
	})
	s.publish(webhookmodels.Event{
		Type:        webhookmodels.EventConsentGranted,
		FiduciaryID: record.Fiduciary.ID,
		Timestamp:   now,
		Data:        eventData(record),
	})
	if s.metrics != nil {
		s.metrics.IncrementConsentsGranted(purpose.Name)
		s.metrics.IncrementActiveConsents(1)
	}
	return record, nil
}

// Revoke transitions a granted consent to revoked and emits consent.revoked.
func (s *Service) Revoke(ctx context.Context, actor middleware.Identity, origin audit.Origin, consentID uuid.UUID, reason string) (*models.Record, error) {
	record, err := s.loadOwned(ctx, actor, consentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := record.Revoke(now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke consent")
	}

	detail, _ := json.Marshal(map[string]any{
		"purpose_id":   record.Purpose.ID,
		"purpose_name": record.Purpose.Name,
		"reason":       reason,
	})
	s.emitAudit(ctx, audit.Entry{
		Action:       audit.ActionConsentRevoked,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		ResourceType: "consent",
		ResourceID:   record.ID.String(),
		Detail:       detail,
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
	})
	s.publish(webhookmodels.Event{
		Type:        webhookmodels.EventConsentRevoked,
		FiduciaryID: record.Fiduciary.ID,
		Timestamp:   now,
		Data:        eventData(record),
	})
	if s.metrics != nil {
		s.metrics.IncrementConsentsRevoked(record.Purpose.Name)
		s.metrics.DecrementActiveConsents(1)
	}
	return record, nil
}

// Renew extends a granted or lazily-expired consent from now using the
// snapshotted retention period. A revoked consent can never be renewed.
func (s *Service) Renew(ctx context.Context, actor middleware.Identity, origin audit.Origin, consentID uuid.UUID) (*models.Record, error) {
	record, err := s.loadOwned(ctx, actor, consentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	wasActive := record.IsActive(now)
	if err := record.Renew(now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to renew consent")
	}

	detail, _ := json.Marshal(map[string]any{
		"purpose_id":     record.Purpose.ID,
		"purpose_name":   record.Purpose.Name,
		"new_expires_at": record.ExpiresAt,
	})
	s.emitAudit(ctx, audit.Entry{
		Action:       audit.ActionConsentRenewed,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		ResourceType: "consent",
		ResourceID:   record.ID.String(),
		Detail:       detail,
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
	})
	if s.metrics != nil {
		s.metrics.IncrementConsentsRenewed(record.Purpose.Name)
		if !wasActive {
			s.metrics.IncrementActiveConsents(1)
		}
	}
	return record, nil
}

// Get returns a consent with its read-time classification. Expiry is lazily
// observed here: a granted record past its expiry reads as expired even
// before the sweep materializes the stored status.
func (s *Service) Get(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) (*ConsentView, error) {
	record, err := s.loadOwned(ctx, actor, consentID)
	if err != nil {
		return nil, err
	}
	return s.view(record), nil
}

// List returns the caller's consents with read-time classification applied.
func (s *Service) List(ctx context.Context, actor middleware.Identity, filter *models.RecordFilter) ([]*ConsentView, error) {
	principalID, err := s.requirePrincipal(actor)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListByPrincipal(ctx, principalID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	views := make([]*ConsentView, 0, len(records))
	for _, record := range records {
		views = append(views, s.view(record))
	}
	return views, nil
}

// Receipt recomputes the receipt from the stored grant-time snapshot and
// verifies the stored signature. A failed verification is reported on the
// view, not as an error; callers that require integrity check the flag.
func (s *Service) Receipt(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) (*ReceiptView, error) {
	record, err := s.loadOwned(ctx, actor, consentID)
	if err != nil {
		return nil, err
	}

	fields := receipt.FieldsFromRecord(record)
	verified := s.signer.Verify(fields, record.ReceiptSignature)
	if !verified {
		if s.metrics != nil {
			s.metrics.IncrementReceiptVerifyFailed()
		}
		s.logger.WarnContext(ctx, "receipt signature verification failed",
			"consent_id", record.ID,
			"receipt_id", record.ReceiptID,
		)
	}
	return &ReceiptView{
		Fields:    fields,
		Signature: record.ReceiptSignature,
		Verified:  verified,
		IssuedAt:  record.GrantedAt,
	}, nil
}

// History returns the audit trail of a single consent, oldest first. The
// ownership check mirrors Get: a consent the caller does not own reads as
// not found.
func (s *Service) History(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) ([]audit.Entry, error) {
	record, err := s.loadOwned(ctx, actor, consentID)
	if err != nil {
		return nil, err
	}
	if s.auditor == nil {
		return nil, nil
	}
	entries, err := s.auditor.ListByResource(ctx, "consent", record.ID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent history")
	}
	return entries, nil
}

// MarkExpired materializes expiry for granted records whose expires_at has
// passed, emitting consent.expired for each. Called by the periodic sweep;
// returns the number of records flipped.
func (s *Service) MarkExpired(ctx context.Context, now time.Time, batch int) (int, error) {
	records, err := s.store.ListExpiredGranted(ctx, now, batch)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired consents")
	}

	flipped := 0
	for _, record := range records {
		record.Status = models.StatusExpired
		if err := s.store.Update(ctx, record); err != nil {
			s.logger.ErrorContext(ctx, "failed to materialize expiry",
				"consent_id", record.ID,
				"error", err,
			)
			continue
		}
		flipped++

		detail, _ := json.Marshal(map[string]any{
			"purpose_id":   record.Purpose.ID,
			"purpose_name": record.Purpose.Name,
			"expired_at":   record.ExpiresAt,
		})
		s.emitAudit(ctx, audit.Entry{
			Action:       audit.ActionConsentExpired,
			ActorType:    "system",
			ActorID:      "expiry-sweep",
			ResourceType: "consent",
			ResourceID:   record.ID.String(),
			Detail:       detail,
		})
		s.publish(webhookmodels.Event{
			Type:        webhookmodels.EventConsentExpired,
			FiduciaryID: record.Fiduciary.ID,
			Timestamp:   now,
			Data:        eventData(record),
		})
		if s.metrics != nil {
			s.metrics.IncrementConsentsExpired()
			s.metrics.DecrementActiveConsents(1)
		}
	}
	return flipped, nil
}

// loadOwned fetches a consent and enforces caller ownership: principals see
// their own consents, fiduciaries the ones naming them.
func (s *Service) loadOwned(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) (*models.Record, error) {
	if actor.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing actor identity")
	}
	record, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "consent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}

	var owner uuid.UUID
	switch actor.Type {
	case middleware.ActorPrincipal:
		owner = record.Principal.ID
	case middleware.ActorFiduciary:
		owner = record.Fiduciary.ID
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "unknown actor type")
	}
	// Report not-found rather than forbidden so consent IDs cannot be
	// probed across accounts.
	if owner.String() != actor.ID {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent not found")
	}
	return record, nil
}

func (s *Service) requirePrincipal(actor middleware.Identity) (uuid.UUID, error) {
	if actor.ID == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "missing actor identity")
	}
	if actor.Type != middleware.ActorPrincipal {
		return uuid.Nil, dErrors.New(dErrors.CodeForbidden, "only data principals can perform this action")
	}
	principalID, err := uuid.Parse(actor.ID)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "malformed principal identity")
	}
	return principalID, nil
}

func (s *Service) view(record *models.Record) *ConsentView {
	now := s.now()
	return &ConsentView{
		Record:        record,
		Status:        record.ComputeStatus(now),
		ExpiringSoon:  record.ExpiringSoon(now),
		DaysUntilExpy: record.DaysUntilExpiry(now),
	}
}

func (s *Service) emitAudit(ctx context.Context, entry audit.Entry) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, entry)
}

func (s *Service) publish(event webhookmodels.Event) {
	if s.events == nil {
		return
	}
	if !s.events.Enqueue(event) && s.logger != nil {
		s.logger.Warn("event queue full, webhook event dropped",
			"event_type", event.Type,
			"fiduciary_id", event.FiduciaryID,
		)
	}
}

// eventData builds the webhook payload data block for a consent record.
func eventData(record *models.Record) map[string]any {
	return map[string]any{
		"consent_uuid": record.ID.String(),
		"user_email":   record.Principal.Contact,
		"purpose_id":   record.Purpose.ID.String(),
		"purpose_name": record.Purpose.Name,
		"granted_at":   record.GrantedAt.UTC().Format(time.RFC3339),
		"status":       string(record.Status),
	}
}
