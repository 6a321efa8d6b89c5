package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"consentd/internal/webhook/models"
)

// ErrNotFound is returned when no registration exists for the identifier.
var ErrNotFound = errors.New("webhook registration not found")

// RegistrationStore persists webhook endpoint registrations. Loaded
// registrations carry the opaque signing secret; it is the caller's job to
// keep it out of anything serialized outward.
//
// Error Contract:
// - FindByID returns ErrNotFound when no registration exists
// - Update and Delete return ErrNotFound for unknown registrations
type RegistrationStore interface {
	Save(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	ListByFiduciary(ctx context.Context, fiduciaryID uuid.UUID) ([]*models.Registration, error)
	// ListActive returns every active registration across fiduciaries.
	// Consumed by the dispatcher on fan-out.
	ListActive(ctx context.Context) ([]*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountActiveByFiduciary(ctx context.Context, fiduciaryID uuid.UUID) (int, error)
}

// DeliveryLog is the append-only record of delivery attempts.
type DeliveryLog interface {
	Append(ctx context.Context, attempt *models.DeliveryAttempt) error
	// ListByRegistration returns attempts newest first, capped at limit.
	ListByRegistration(ctx context.Context, registrationID uuid.UUID, limit int) ([]*models.DeliveryAttempt, error)
	// CountByStatus aggregates a registration's attempts per outcome.
	CountByStatus(ctx context.Context, registrationID uuid.UUID) (map[models.AttemptStatus]int, error)
}
