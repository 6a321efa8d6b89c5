package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"consentd/internal/consent/models"
)

// InMemoryStore stores consent records in memory. Used by tests and by
// deployments without a configured database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.Record
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]*models.Record)}
}

// Save inserts a new record, enforcing the (principal, purpose) active
// uniqueness invariant under the store lock. The check is on stored status,
// matching the partial unique index: a lazily-expired record still blocks a
// new grant until the sweeper flips it.
func (s *InMemoryStore) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.Principal.ID == record.Principal.ID &&
			existing.Purpose.ID == record.Purpose.ID &&
			existing.Status == models.StatusGranted {
			return ErrDuplicateActive
		}
	}
	s.records[record.ID] = copyRecord(record)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(record), nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID uuid.UUID, filter *models.RecordFilter) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()

	var out []*models.Record
	for _, record := range s.records {
		if record.Principal.ID != principalID {
			continue
		}
		if filter != nil {
			if filter.PurposeID != nil && record.Purpose.ID != *filter.PurposeID {
				continue
			}
			if filter.Status != nil && record.ComputeStatus(now) != *filter.Status {
				continue
			}
		}
		out = append(out, copyRecord(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return ErrNotFound
	}
	s.records[record.ID] = copyRecord(record)
	return nil
}

func (s *InMemoryStore) ListExpiredGranted(_ context.Context, now time.Time, limit int) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, record := range s.records {
		if record.Status == models.StatusGranted && record.ExpiresAt.Before(now) {
			out = append(out, copyRecord(record))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// copyRecord returns a deep copy to prevent external modifications.
func copyRecord(r *models.Record) *models.Record {
	cp := *r
	cp.Purpose.DataCategories = append([]string(nil), r.Purpose.DataCategories...)
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		cp.RevokedAt = &t
	}
	if r.RenewedAt != nil {
		t := *r.RenewedAt
		cp.RenewedAt = &t
	}
	return &cp
}
