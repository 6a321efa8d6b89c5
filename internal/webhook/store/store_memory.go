package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"consentd/internal/webhook/models"
)

// InMemoryRegistrationStore is a thread-safe in-memory RegistrationStore.
// Used in tests and when no database is configured.
type InMemoryRegistrationStore struct {
	mu   sync.RWMutex
	regs map[uuid.UUID]*models.Registration
}

func NewRegistrationStore() *InMemoryRegistrationStore {
	return &InMemoryRegistrationStore{regs: make(map[uuid.UUID]*models.Registration)}
}

func (s *InMemoryRegistrationStore) Save(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg.ID] = copyRegistration(reg)
	return nil
}

func (s *InMemoryRegistrationStore) FindByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRegistration(reg), nil
}

func (s *InMemoryRegistrationStore) ListByFiduciary(_ context.Context, fiduciaryID uuid.UUID) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, reg := range s.regs {
		if reg.FiduciaryID == fiduciaryID {
			out = append(out, copyRegistration(reg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryRegistrationStore) ListActive(_ context.Context) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, reg := range s.regs {
		if reg.Active {
			out = append(out, copyRegistration(reg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryRegistrationStore) Update(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regs[reg.ID]; !ok {
		return ErrNotFound
	}
	s.regs[reg.ID] = copyRegistration(reg)
	return nil
}

func (s *InMemoryRegistrationStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regs[id]; !ok {
		return ErrNotFound
	}
	delete(s.regs, id)
	return nil
}

func (s *InMemoryRegistrationStore) CountActiveByFiduciary(_ context.Context, fiduciaryID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, reg := range s.regs {
		if reg.FiduciaryID == fiduciaryID && reg.Active {
			count++
		}
	}
	return count, nil
}

func copyRegistration(reg *models.Registration) *models.Registration {
	c := *reg
	c.Events = append([]models.EventType(nil), reg.Events...)
	return &c
}

// InMemoryDeliveryLog is a thread-safe in-memory DeliveryLog.
type InMemoryDeliveryLog struct {
	mu       sync.RWMutex
	attempts []*models.DeliveryAttempt
}

func NewDeliveryLog() *InMemoryDeliveryLog {
	return &InMemoryDeliveryLog{}
}

func (l *InMemoryDeliveryLog) Append(_ context.Context, attempt *models.DeliveryAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := *attempt
	l.attempts = append(l.attempts, &c)
	return nil
}

func (l *InMemoryDeliveryLog) CountByStatus(_ context.Context, registrationID uuid.UUID) (map[models.AttemptStatus]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[models.AttemptStatus]int)
	for _, a := range l.attempts {
		if a.RegistrationID == registrationID {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (l *InMemoryDeliveryLog) ListByRegistration(_ context.Context, registrationID uuid.UUID, limit int) ([]*models.DeliveryAttempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*models.DeliveryAttempt
	// Newest first; the log is append-ordered so walk it backwards.
	for i := len(l.attempts) - 1; i >= 0; i-- {
		if l.attempts[i].RegistrationID != registrationID {
			continue
		}
		c := *l.attempts[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
