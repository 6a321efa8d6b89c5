package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"consentd/internal/purpose/models"
)

// InMemoryStore stores purposes in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	purposes map[uuid.UUID]*models.Purpose
}

// New constructs an empty in-memory purpose store.
func New() *InMemoryStore {
	return &InMemoryStore{purposes: make(map[uuid.UUID]*models.Purpose)}
}

func (s *InMemoryStore) Save(_ context.Context, purpose *models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyPurpose := *purpose
	copyPurpose.DataCategories = append([]string(nil), purpose.DataCategories...)
	s.purposes[purpose.ID] = &copyPurpose
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Purpose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	purpose, ok := s.purposes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copyPurpose := *purpose
	copyPurpose.DataCategories = append([]string(nil), purpose.DataCategories...)
	return &copyPurpose, nil
}

func (s *InMemoryStore) ListByFiduciary(_ context.Context, fiduciaryID uuid.UUID) ([]*models.Purpose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Purpose
	for _, p := range s.purposes {
		if p.FiduciaryID != fiduciaryID {
			continue
		}
		copyPurpose := *p
		copyPurpose.DataCategories = append([]string(nil), p.DataCategories...)
		out = append(out, &copyPurpose)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Deactivate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	purpose, ok := s.purposes[id]
	if !ok {
		return ErrNotFound
	}
	purpose.Active = false
	return nil
}
