package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"consentd/internal/consent/models"
)

// ErrNotFound is returned when no consent record exists for the identifier.
var ErrNotFound = errors.New("consent not found")

// ErrDuplicateActive is returned by Save when a non-revoked, non-expired
// record already exists for the (principal, purpose) pair. Uniqueness is
// enforced here so two concurrent grants cannot both succeed; the loser
// receives this error.
var ErrDuplicateActive = errors.New("active consent already exists for principal and purpose")

// Store defines the persistence interface for consent records.
//
// Error Contract:
// - FindByID returns ErrNotFound when no record exists
// - Save returns ErrDuplicateActive on the uniqueness race
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Save(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListByPrincipal(ctx context.Context, principalID uuid.UUID, filter *models.RecordFilter) ([]*models.Record, error)
	Update(ctx context.Context, record *models.Record) error

	// ListExpiredGranted returns records whose stored status is still
	// granted but whose expiry has passed. Consumed by the expiry sweep.
	ListExpiredGranted(ctx context.Context, now time.Time, limit int) ([]*models.Record, error)
}
