package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"consentd/internal/audit"
	"consentd/internal/platform/middleware"
	"consentd/internal/webhook/models"
	"consentd/internal/webhook/store"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/secrets"
)

// Tester sends a single synchronous test delivery to one registration.
type Tester interface {
	Test(ctx context.Context, reg *models.Registration) (*models.DeliveryAttempt, error)
}

// Service manages webhook endpoint registrations for fiduciaries. Signing
// secrets are returned exactly once, at creation or rotation; afterwards only
// the bcrypt hash leaves the store with the registration's outward view.
type Service struct {
	store      store.RegistrationStore
	deliveries store.DeliveryLog
	tester     Tester
	auditor    *audit.Publisher
	logger     *slog.Logger
}

func NewService(st store.RegistrationStore, deliveries store.DeliveryLog, tester Tester, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{store: st, deliveries: deliveries, tester: tester, auditor: auditor, logger: logger}
}

// CreateRequest carries the fields for registering an endpoint.
type CreateRequest struct {
	Name   string             `json:"name"`
	URL    string             `json:"url"`
	Events []models.EventType `json:"events"`
}

// UpdateRequest carries the mutable registration fields. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Name   *string            `json:"name"`
	URL    *string            `json:"url"`
	Events []models.EventType `json:"events"`
	Active *bool              `json:"active"`
}

// Created pairs a new registration with its one-time plaintext secret.
type Created struct {
	Registration *models.Registration
	Secret       string
}

// Create registers a new endpoint and mints its signing secret. The secret
// in the returned Created is the only time the plaintext is handed out.
func (s *Service) Create(ctx context.Context, actor middleware.Identity, origin audit.Origin, req CreateRequest) (*Created, error) {
	fiduciaryID, err := s.requireFiduciary(actor)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountActiveByFiduciary(ctx, fiduciaryID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
	}
	if count >= models.MaxActiveRegistrations {
		return nil, dErrors.New(dErrors.CodeConflict, "active registration limit reached")
	}

	reg, err := models.NewRegistration(fiduciaryID, req.Name, req.URL, req.Events)
	if err != nil {
		return nil, err
	}
	secret, err := secrets.GenerateWebhookSecret()
	if err != nil {
		return nil, err
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, err
	}
	reg.Secret = secret
	reg.SecretHash = hash

	if err := s.store.Save(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registration")
	}

	detail, _ := json.Marshal(map[string]any{"name": reg.Name, "url": reg.URL, "events": reg.Events})
	s.emitAudit(ctx, actor, origin, audit.ActionWebhookCreated, reg.ID, detail)
	return &Created{Registration: reg, Secret: secret}, nil
}

func (s *Service) List(ctx context.Context, actor middleware.Identity) ([]*models.Registration, error) {
	fiduciaryID, err := s.requireFiduciary(actor)
	if err != nil {
		return nil, err
	}
	regs, err := s.store.ListByFiduciary(ctx, fiduciaryID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, nil
}

func (s *Service) Get(ctx context.Context, actor middleware.Identity, id uuid.UUID) (*models.Registration, error) {
	return s.loadOwned(ctx, actor, id)
}

// Update applies partial changes to a registration. Reactivation counts
// against the active registration limit.
func (s *Service) Update(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID, req UpdateRequest) (*models.Registration, error) {
	reg, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Active != nil && *req.Active && !reg.Active {
		count, err := s.store.CountActiveByFiduciary(ctx, reg.FiduciaryID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
		}
		if count >= models.MaxActiveRegistrations {
			return nil, dErrors.New(dErrors.CodeConflict, "active registration limit reached")
		}
	}

	if err := reg.Apply(req.Name, req.URL, req.Events, req.Active); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update registration")
	}

	detail, _ := json.Marshal(map[string]any{"name": reg.Name, "url": reg.URL, "events": reg.Events, "active": reg.Active})
	s.emitAudit(ctx, actor, origin, audit.ActionWebhookUpdated, reg.ID, detail)
	return reg, nil
}

func (s *Service) Delete(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID) error {
	reg, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, reg.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete registration")
	}
	s.emitAudit(ctx, actor, origin, audit.ActionWebhookDeleted, reg.ID, nil)
	return nil
}

// RotateSecret mints a fresh signing secret, returning the plaintext once.
// In-flight deliveries signed with the old secret will fail verification;
// receivers are expected to update promptly.
func (s *Service) RotateSecret(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID) (*Created, error) {
	reg, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	secret, err := secrets.GenerateWebhookSecret()
	if err != nil {
		return nil, err
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, err
	}
	reg.Secret = secret
	reg.SecretHash = hash
	reg.Touch()

	if err := s.store.Update(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate secret")
	}
	s.emitAudit(ctx, actor, origin, audit.ActionWebhookSecretRotated, reg.ID, nil)
	return &Created{Registration: reg, Secret: secret}, nil
}

// SendTest fires a single test delivery at the registration and returns the
// recorded attempt so the caller sees the endpoint's response inline.
func (s *Service) SendTest(ctx context.Context, actor middleware.Identity, id uuid.UUID) (*models.DeliveryAttempt, error) {
	reg, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	attempt, err := s.tester.Test(ctx, reg)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to send test delivery")
	}
	return attempt, nil
}

// DeliveryPage is a registration's recent attempts plus all-time outcome
// counts for operator views.
type DeliveryPage struct {
	Attempts []*models.DeliveryAttempt
	Counts   map[models.AttemptStatus]int
}

// Deliveries returns the registration's recent delivery attempts, newest
// first.
func (s *Service) Deliveries(ctx context.Context, actor middleware.Identity, id uuid.UUID, limit int) (*DeliveryPage, error) {
	reg, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > models.MaxDeliveryPage {
		limit = models.MaxDeliveryPage
	}
	attempts, err := s.deliveries.ListByRegistration(ctx, reg.ID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deliveries")
	}
	counts, err := s.deliveries.CountByStatus(ctx, reg.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count deliveries")
	}
	return &DeliveryPage{Attempts: attempts, Counts: counts}, nil
}

func (s *Service) loadOwned(ctx context.Context, actor middleware.Identity, id uuid.UUID) (*models.Registration, error) {
	fiduciaryID, err := s.requireFiduciary(actor)
	if err != nil {
		return nil, err
	}
	reg, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read registration")
	}
	// Report not-found rather than forbidden so registration IDs cannot be
	// probed across fiduciaries.
	if reg.FiduciaryID != fiduciaryID {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}

func (s *Service) requireFiduciary(actor middleware.Identity) (uuid.UUID, error) {
	if actor.ID == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "missing actor identity")
	}
	if actor.Type != middleware.ActorFiduciary {
		return uuid.Nil, dErrors.New(dErrors.CodeForbidden, "only fiduciaries can manage webhooks")
	}
	fiduciaryID, err := uuid.Parse(actor.ID)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "malformed fiduciary identity")
	}
	return fiduciaryID, nil
}

func (s *Service) emitAudit(ctx context.Context, actor middleware.Identity, origin audit.Origin, action string, id uuid.UUID, detail json.RawMessage) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Entry{
		Action:       action,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		ResourceType: "webhook_registration",
		ResourceID:   id.String(),
		Detail:       detail,
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
	})
}
