package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of consent-lifecycle events a registration can
// subscribe to. Subscription matching is set membership over this enum, never
// raw string comparison.
type EventType string

const (
	EventConsentGranted EventType = "consent.granted"
	EventConsentRevoked EventType = "consent.revoked"
	EventConsentExpired EventType = "consent.expired"
	EventTest           EventType = "webhook.test"

	// EventWildcard subscribes a registration to every event type.
	EventWildcard EventType = "all"
)

// IsValid reports whether the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventConsentGranted, EventConsentRevoked, EventConsentExpired, EventTest, EventWildcard:
		return true
	}
	return false
}

// IsDeliverable reports whether the type can appear on a broadcast event.
// The wildcard is a subscription marker only, and test deliveries are sent
// directly to a single registration rather than fanned out.
func (t EventType) IsDeliverable() bool {
	switch t {
	case EventConsentGranted, EventConsentRevoked, EventConsentExpired:
		return true
	}
	return false
}

// Event is a consent-lifecycle notification bound for a fiduciary's
// registered endpoints.
//
// DeliveryID is stable across retries of the same logical
// event+registration chain so receivers can deduplicate; the dispatcher
// derives a fresh one per matching registration.
type Event struct {
	Type        EventType
	FiduciaryID uuid.UUID
	Timestamp   time.Time
	Data        map[string]any
}
