package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "consentd/pkg/domain-errors"
)

// LegalBasis is the declared lawful basis for processing under a purpose.
type LegalBasis string

const (
	BasisConsent            LegalBasis = "consent"
	BasisContract           LegalBasis = "contract"
	BasisLegalObligation    LegalBasis = "legal_obligation"
	BasisLegitimateInterest LegalBasis = "legitimate_interest"
)

// IsValid reports whether the legal basis is a known value.
func (b LegalBasis) IsValid() bool {
	switch b {
	case BasisConsent, BasisContract, BasisLegalObligation, BasisLegitimateInterest:
		return true
	}
	return false
}

// Purpose describes a lawful basis for processing. Immutable once published:
// withdrawal deactivates it, nothing is ever hard-deleted, so consents that
// reference it stay resolvable.
type Purpose struct {
	ID          uuid.UUID `json:"id"`
	FiduciaryID uuid.UUID `json:"fiduciary_id"`
	// Descriptive identity of the owning fiduciary, frozen at publication so
	// receipts minted against this purpose stay reproducible.
	FiduciaryName       string     `json:"fiduciary_name"`
	FiduciaryContact    string     `json:"fiduciary_contact"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	DataCategories      []string   `json:"data_categories"`
	RetentionPeriodDays int        `json:"retention_period_days"`
	LegalBasis          LegalBasis `json:"legal_basis"`
	Mandatory           bool       `json:"mandatory"`
	Active              bool       `json:"active"`
	CreatedAt           time.Time  `json:"created_at"`
}

// New creates a Purpose with domain invariant checks.
func New(fiduciaryID uuid.UUID, fiduciaryName, fiduciaryContact, name, description string, categories []string, retentionDays int, basis LegalBasis, mandatory bool) (*Purpose, error) {
	if fiduciaryID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fiduciary ID required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose name required")
	}
	if retentionDays <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "retention period must be positive")
	}
	if !basis.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid legal basis")
	}
	return &Purpose{
		ID:                  uuid.New(),
		FiduciaryID:         fiduciaryID,
		FiduciaryName:       fiduciaryName,
		FiduciaryContact:    fiduciaryContact,
		Name:                name,
		Description:         description,
		DataCategories:      append([]string(nil), categories...),
		RetentionPeriodDays: retentionDays,
		LegalBasis:          basis,
		Mandatory:           mandatory,
		Active:              true,
		CreatedAt:           time.Now().UTC(),
	}, nil
}

// Retention returns the retention period as a duration.
func (p *Purpose) Retention() time.Duration {
	return time.Duration(p.RetentionPeriodDays) * 24 * time.Hour
}
