package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "consentd/pkg/domain-errors"
)

// MaxActiveRegistrations bounds fan-out cost per fiduciary.
const MaxActiveRegistrations = 10

// MaxDeliveryPage caps the number of delivery attempts returned per listing.
const MaxDeliveryPage = 50

// Registration is a fiduciary-owned endpoint subscribed to consent events.
//
// The signing secret is write-once-read-opaque: it is returned in plaintext
// exactly once at creation or rotation, held internally for payload signing,
// and exposed to operators only as a bcrypt hash for verification. No API
// path returns the stored secret.
type Registration struct {
	ID          uuid.UUID   `json:"id"`
	FiduciaryID uuid.UUID   `json:"fiduciary_id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Events      []EventType `json:"events"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// Secret is the signing secret; never serialized or returned by reads.
	Secret string `json:"-"`
	// SecretHash is the bcrypt hash of Secret, used to let a caller verify
	// a secret they hold without retrieval.
	SecretHash string `json:"-"`
}

// NewRegistration creates a Registration with domain invariant checks.
func NewRegistration(fiduciaryID uuid.UUID, name, url string, events []EventType) (*Registration, error) {
	if fiduciaryID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fiduciary ID required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration name required")
	}
	if url == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "registration URL required")
	}
	if len(events) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one event type required")
	}
	for _, e := range events {
		if !e.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown event type: "+string(e))
		}
	}
	now := time.Now().UTC()
	return &Registration{
		ID:          uuid.New(),
		FiduciaryID: fiduciaryID,
		Name:        name,
		URL:         url,
		Events:      append([]EventType(nil), events...),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Apply overlays partial updates onto the registration. Nil fields are left
// unchanged; provided fields are validated the same way as at creation.
func (r *Registration) Apply(name, url *string, events []EventType, active *bool) error {
	if name != nil {
		if *name == "" {
			return dErrors.New(dErrors.CodeValidation, "registration name required")
		}
		r.Name = *name
	}
	if url != nil {
		if *url == "" {
			return dErrors.New(dErrors.CodeValidation, "registration URL required")
		}
		r.URL = *url
	}
	if events != nil {
		if len(events) == 0 {
			return dErrors.New(dErrors.CodeValidation, "at least one event type required")
		}
		for _, e := range events {
			if !e.IsValid() {
				return dErrors.New(dErrors.CodeValidation, "unknown event type: "+string(e))
			}
		}
		r.Events = append([]EventType(nil), events...)
	}
	if active != nil {
		r.Active = *active
	}
	r.Touch()
	return nil
}

// Touch bumps the modification timestamp.
func (r *Registration) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// Matches reports whether the registration should receive the event type.
// Inactive registrations match nothing.
func (r *Registration) Matches(t EventType) bool {
	if !r.Active {
		return false
	}
	for _, e := range r.Events {
		if e == EventWildcard || e == t {
			return true
		}
	}
	return false
}

// AttemptStatus is the outcome of one delivery attempt.
type AttemptStatus string

const (
	// AttemptPending is part of the wire vocabulary for receivers that
	// record an attempt before its outcome is known. The dispatcher itself
	// records attempts only after completion, so it never emits this value.
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// DeliveryAttempt is one concrete try at POSTing an event to an endpoint.
// Append-only: a retry creates a new attempt, never updates an old one.
type DeliveryAttempt struct {
	ID             uuid.UUID     `json:"id"`
	RegistrationID uuid.UUID     `json:"registration_id"`
	DeliveryID     uuid.UUID     `json:"delivery_id"`
	EventType      EventType     `json:"event_type"`
	Attempt        int           `json:"attempt"`
	Status         AttemptStatus `json:"status"`
	ResponseCode   *int          `json:"response_code,omitempty"`
	ResponseBody   string        `json:"response_body,omitempty"`
	Error          string        `json:"error,omitempty"`
	LatencyMS      int64         `json:"latency_ms"`
	CreatedAt      time.Time     `json:"created_at"`
}
