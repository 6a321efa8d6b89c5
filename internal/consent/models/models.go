package models

import (
	"time"

	"github.com/google/uuid"

	purposemodels "consentd/internal/purpose/models"
	dErrors "consentd/pkg/domain-errors"
)

// Status is the lifecycle state of a consent.
type Status string

const (
	StatusGranted Status = "granted"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusGranted, StatusRevoked, StatusExpired:
		return true
	}
	return false
}

// ExpiringSoonWindow is the read-side classification window: a granted
// consent whose expiry falls within this window counts as "expiring soon".
// The classification never changes stored status.
const ExpiringSoonWindow = 14 * 24 * time.Hour

// PartySnapshot captures the descriptive identity of a principal or
// fiduciary at grant time. Receipts are recomputed from these fields years
// later, so they must not depend on mutable account state.
type PartySnapshot struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Contact string    `json:"contact"`
}

// PurposeSnapshot freezes the purpose's descriptive fields at grant time.
type PurposeSnapshot struct {
	ID                  uuid.UUID                `json:"id"`
	Name                string                   `json:"name"`
	Description         string                   `json:"description"`
	DataCategories      []string                 `json:"data_categories"`
	LegalBasis          purposemodels.LegalBasis `json:"legal_basis"`
	RetentionPeriodDays int                      `json:"retention_period_days"`
}

// SnapshotPurpose builds a PurposeSnapshot from a registry purpose.
func SnapshotPurpose(p *purposemodels.Purpose) PurposeSnapshot {
	return PurposeSnapshot{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		DataCategories:      append([]string(nil), p.DataCategories...),
		LegalBasis:          p.LegalBasis,
		RetentionPeriodDays: p.RetentionPeriodDays,
	}
}

// Record binds one data principal to one purpose under one fiduciary.
//
// # Uniqueness Invariant
//
// At most one non-revoked, non-expired record may exist per
// (principal, purpose) pair. The store layer enforces this; a concurrent
// second grant loses with a conflict.
type Record struct {
	ID        uuid.UUID
	Principal PartySnapshot
	Fiduciary PartySnapshot
	Purpose   PurposeSnapshot
	Status    Status
	GrantedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	RenewedAt *time.Time

	// Receipt material fixed at grant time.
	ReceiptID        uuid.UUID
	ReceiptSignature string
}

// NewRecord creates a granted Record with domain invariant checks.
func NewRecord(principal, fiduciary PartySnapshot, purpose PurposeSnapshot, grantedAt time.Time) (*Record, error) {
	if principal.ID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal ID required")
	}
	if fiduciary.ID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fiduciary ID required")
	}
	if purpose.ID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purpose ID required")
	}
	if purpose.RetentionPeriodDays <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "retention period must be positive")
	}
	if grantedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant time required")
	}
	return &Record{
		ID:        uuid.New(),
		Principal: principal,
		Fiduciary: fiduciary,
		Purpose:   purpose,
		Status:    StatusGranted,
		GrantedAt: grantedAt,
		ExpiresAt: grantedAt.Add(time.Duration(purpose.RetentionPeriodDays) * 24 * time.Hour),
		ReceiptID: uuid.New(),
	}, nil
}

// ComputeStatus reports the lifecycle state at the provided time. A granted
// record past its expiry is expired even before the sweep materializes the
// stored status.
func (r *Record) ComputeStatus(now time.Time) Status {
	if r.Status == StatusRevoked {
		return StatusRevoked
	}
	if r.ExpiresAt.Before(now) {
		return StatusExpired
	}
	return StatusGranted
}

// IsActive returns true when the consent is currently granted and unexpired.
func (r *Record) IsActive(now time.Time) bool {
	return r.ComputeStatus(now) == StatusGranted
}

// ExpiringSoon reports whether 0 < time-until-expiry <= 14 days. Revoked and
// already-expired records are never expiring soon.
func (r *Record) ExpiringSoon(now time.Time) bool {
	if r.ComputeStatus(now) != StatusGranted {
		return false
	}
	until := r.ExpiresAt.Sub(now)
	return until > 0 && until <= ExpiringSoonWindow
}

// DaysUntilExpiry returns whole days until expiry, floored at zero.
func (r *Record) DaysUntilExpiry(now time.Time) int {
	d := int(r.ExpiresAt.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Renew extends the consent from now using the snapshotted retention period.
// Allowed from granted or expired; a revoked consent can never be renewed.
func (r *Record) Renew(now time.Time) error {
	if r.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvalidState, "revoked consent cannot be renewed")
	}
	r.Status = StatusGranted
	r.ExpiresAt = now.Add(time.Duration(r.Purpose.RetentionPeriodDays) * 24 * time.Hour)
	renewedAt := now
	r.RenewedAt = &renewedAt
	return nil
}

// Revoke marks the consent revoked. Only a currently granted consent can be
// revoked; revoking twice or revoking an expired consent is an invalid state.
func (r *Record) Revoke(now time.Time) error {
	switch r.ComputeStatus(now) {
	case StatusRevoked:
		return dErrors.New(dErrors.CodeInvalidState, "consent already revoked")
	case StatusExpired:
		return dErrors.New(dErrors.CodeInvalidState, "expired consent cannot be revoked")
	}
	r.Status = StatusRevoked
	revokedAt := now
	r.RevokedAt = &revokedAt
	return nil
}

// RecordFilter allows filtering consent records by purpose and status.
type RecordFilter struct {
	PurposeID *uuid.UUID
	Status    *Status
}
