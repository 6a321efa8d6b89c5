package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"consentd/internal/purpose/models"
)

// ErrNotFound is returned when no purpose exists for the given identifier.
var ErrNotFound = errors.New("purpose not found")

// Store defines the persistence interface for purposes.
//
// Error Contract:
// - FindByID returns ErrNotFound when no purpose exists
// - Deactivate returns ErrNotFound when no purpose exists
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Save(ctx context.Context, purpose *models.Purpose) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purpose, error)
	ListByFiduciary(ctx context.Context, fiduciaryID uuid.UUID) ([]*models.Purpose, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}
