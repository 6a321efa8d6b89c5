package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded for every state-changing operation.
const (
	ActionConsentGranted       = "consent_granted"
	ActionConsentRevoked       = "consent_revoked"
	ActionConsentRenewed       = "consent_renewed"
	ActionConsentExpired       = "consent_expired"
	ActionPurposeCreated       = "purpose_created"
	ActionPurposeDeactivated   = "purpose_deactivated"
	ActionWebhookCreated       = "webhook_created"
	ActionWebhookUpdated       = "webhook_updated"
	ActionWebhookDeleted       = "webhook_deleted"
	ActionWebhookSecretRotated = "webhook_secret_rotated"
)

// AnonymizedActor replaces scrubbed actor references after an erasure request.
const AnonymizedActor = "anonymized"

// Entry is an append-only record of a state-changing action. Keep it
// transport-agnostic so stores and sinks can fan out.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	Action       string          `json:"action"`
	ActorType    string          `json:"actor_type"`
	ActorID      string          `json:"actor_id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
