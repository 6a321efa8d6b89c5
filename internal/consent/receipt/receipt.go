// Package receipt produces and verifies tamper-evident consent receipts.
//
// The signature is a SHA-256 digest over a canonical serialization of the
// receipt's logical fields. Canonicalization is a pure function of those
// fields: fixed field order, RFC 3339 UTC timestamps, compact JSON. The
// digest must be reproducible from stored field values alone, years after
// issuance, with no dependency on runtime-only state.
package receipt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"consentd/internal/consent/models"
)

// SignaturePrefix tags the digest algorithm so the scheme can evolve.
const SignaturePrefix = "sha256:"

// TimeFormat is the canonical timestamp layout. Always UTC, second
// precision, so a round trip through any store cannot change the digest.
const TimeFormat = time.RFC3339

// Fields is the fixed, ordered set of values bound by a receipt signature.
// Field order is part of the canonical form; never reorder these.
type Fields struct {
	ReceiptID        string   `json:"receipt_id"`
	ConsentID        string   `json:"consent_id"`
	PrincipalName    string   `json:"principal_name"`
	PrincipalContact string   `json:"principal_contact"`
	FiduciaryName    string   `json:"fiduciary_name"`
	FiduciaryContact string   `json:"fiduciary_contact"`
	PurposeID        string   `json:"purpose_id"`
	PurposeName      string   `json:"purpose_name"`
	Description      string   `json:"description"`
	DataCategories   []string `json:"data_categories"`
	LegalBasis       string   `json:"legal_basis"`
	RetentionDays    int      `json:"retention_days"`
	GrantedAt        string   `json:"granted_at"`
	ExpiresAt        string   `json:"expires_at"`
	Status           string   `json:"status"`
}

// FieldsFromRecord builds the canonical field set from a consent record's
// grant-time snapshot. Status is the status being attested, which for a
// receipt issued at grant time is always "granted".
func FieldsFromRecord(r *models.Record) Fields {
	return Fields{
		ReceiptID:        r.ReceiptID.String(),
		ConsentID:        r.ID.String(),
		PrincipalName:    r.Principal.Name,
		PrincipalContact: r.Principal.Contact,
		FiduciaryName:    r.Fiduciary.Name,
		FiduciaryContact: r.Fiduciary.Contact,
		PurposeID:        r.Purpose.ID.String(),
		PurposeName:      r.Purpose.Name,
		Description:      r.Purpose.Description,
		DataCategories:   append([]string(nil), r.Purpose.DataCategories...),
		LegalBasis:       string(r.Purpose.LegalBasis),
		RetentionDays:    r.Purpose.RetentionPeriodDays,
		GrantedAt:        r.GrantedAt.UTC().Format(TimeFormat),
		ExpiresAt:        r.ExpiresAt.UTC().Format(TimeFormat),
		Status:           string(models.StatusGranted),
	}
}

// Signer computes and verifies receipt signatures.
type Signer struct{}

// NewSigner returns a receipt signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign serializes the fields canonically and returns the tagged hex digest,
// e.g. "sha256:<64 lowercase hex chars>".
func (s *Signer) Sign(fields Fields) string {
	sum := sha256.Sum256(canonicalBytes(fields))
	return SignaturePrefix + hex.EncodeToString(sum[:])
}

// Verify recomputes the digest and compares it in constant time. It returns
// false for any mismatch, including a malformed signature string; it never
// returns an error.
func (s *Signer) Verify(fields Fields, signature string) bool {
	expected := s.Sign(fields)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// canonicalBytes is the canonical serialization. encoding/json emits struct
// fields in declaration order with no insignificant whitespace, which makes
// the output a pure function of the field values.
func canonicalBytes(fields Fields) []byte {
	b, err := json.Marshal(fields)
	if err != nil {
		// Fields contains only strings, string slices, and ints; Marshal
		// cannot fail on it.
		panic(err)
	}
	return b
}
