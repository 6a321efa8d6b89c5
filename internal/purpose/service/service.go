package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"consentd/internal/audit"
	"consentd/internal/platform/middleware"
	"consentd/internal/purpose/models"
	"consentd/internal/purpose/store"
	dErrors "consentd/pkg/domain-errors"
)

// Service manages the purpose registry. Purposes are immutable once
// published; withdrawal deactivates them.
type Service struct {
	store   store.Store
	auditor *audit.Publisher
	logger  *slog.Logger
}

func NewService(st store.Store, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{store: st, auditor: auditor, logger: logger}
}

// CreateRequest carries the fields for publishing a new purpose.
type CreateRequest struct {
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	DataCategories      []string          `json:"data_categories"`
	RetentionPeriodDays int               `json:"retention_period_days"`
	LegalBasis          models.LegalBasis `json:"legal_basis"`
	Mandatory           bool              `json:"mandatory"`
}

func (s *Service) Create(ctx context.Context, actor middleware.Identity, origin audit.Origin, req CreateRequest) (*models.Purpose, error) {
	if actor.Type != middleware.ActorFiduciary {
		return nil, dErrors.New(dErrors.CodeForbidden, "only fiduciaries can publish purposes")
	}
	fiduciaryID, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "malformed fiduciary identity")
	}

	purpose, err := models.New(fiduciaryID, actor.Name, actor.Email, req.Name, req.Description, req.DataCategories, req.RetentionPeriodDays, req.LegalBasis, req.Mandatory)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, purpose); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save purpose")
	}

	detail, _ := json.Marshal(map[string]any{"name": purpose.Name, "legal_basis": purpose.LegalBasis})
	s.emitAudit(ctx, audit.Entry{
		Action:       audit.ActionPurposeCreated,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		ResourceType: "purpose",
		ResourceID:   purpose.ID.String(),
		Detail:       detail,
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
	})
	return purpose, nil
}

func (s *Service) List(ctx context.Context, actor middleware.Identity) ([]*models.Purpose, error) {
	if actor.Type != middleware.ActorFiduciary {
		return nil, dErrors.New(dErrors.CodeForbidden, "only fiduciaries can list their purposes")
	}
	fiduciaryID, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "malformed fiduciary identity")
	}
	purposes, err := s.store.ListByFiduciary(ctx, fiduciaryID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list purposes")
	}
	return purposes, nil
}

// Deactivate withdraws a purpose. Existing consents keep their snapshots;
// new grants against the purpose are rejected.
func (s *Service) Deactivate(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID) error {
	if actor.Type != middleware.ActorFiduciary {
		return dErrors.New(dErrors.CodeForbidden, "only fiduciaries can withdraw purposes")
	}
	purpose, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "purpose not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read purpose")
	}
	if purpose.FiduciaryID.String() != actor.ID {
		return dErrors.New(dErrors.CodeForbidden, "purpose belongs to another fiduciary")
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate purpose")
	}

	s.emitAudit(ctx, audit.Entry{
		Action:       audit.ActionPurposeDeactivated,
		ActorType:    string(actor.Type),
		ActorID:      actor.ID,
		ResourceType: "purpose",
		ResourceID:   id.String(),
		IP:           origin.IP,
		UserAgent:    origin.UserAgent,
	})
	return nil
}

func (s *Service) emitAudit(ctx context.Context, entry audit.Entry) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, entry)
}
