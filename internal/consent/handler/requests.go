package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"consentd/internal/consent/models"
	"consentd/internal/consent/receipt"
	"consentd/internal/consent/service"
	dErrors "consentd/pkg/domain-errors"
)

type GrantRequest struct {
	PurposeID string `json:"purpose_id"`
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

type PartyResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type PurposeResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	DataCategories      []string `json:"data_categories"`
	LegalBasis          string   `json:"legal_basis"`
	RetentionPeriodDays int      `json:"retention_period_days"`
}

// RecordResponse is the consent as written: status is the stored value. Used
// for mutation responses where the transition just happened.
type RecordResponse struct {
	ID               string          `json:"id"`
	Principal        PartyResponse   `json:"principal"`
	Fiduciary        PartyResponse   `json:"fiduciary"`
	Purpose          PurposeResponse `json:"purpose"`
	Status           string          `json:"status"`
	GrantedAt        time.Time       `json:"granted_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
	RevokedAt        *time.Time      `json:"revoked_at,omitempty"`
	RenewedAt        *time.Time      `json:"renewed_at,omitempty"`
	ReceiptID        string          `json:"receipt_id"`
	ReceiptSignature string          `json:"receipt_signature"`
}

// ConsentResponse is the consent as read: status reflects lazily observed
// expiry and carries the expiry forecast.
type ConsentResponse struct {
	RecordResponse
	ExpiringSoon    bool `json:"expiring_soon"`
	DaysUntilExpiry int  `json:"days_until_expiry"`
}

type ListResponse struct {
	Consents []*ConsentResponse `json:"consents"`
	Total    int                `json:"total"`
}

type ReceiptResponse struct {
	Receipt   receipt.Fields `json:"receipt"`
	Signature string         `json:"signature"`
	Verified  bool           `json:"verified"`
}

func toRecordResponse(r *models.Record) *RecordResponse {
	return &RecordResponse{
		ID: r.ID.String(),
		Principal: PartyResponse{
			ID:      r.Principal.ID.String(),
			Name:    r.Principal.Name,
			Contact: r.Principal.Contact,
		},
		Fiduciary: PartyResponse{
			ID:      r.Fiduciary.ID.String(),
			Name:    r.Fiduciary.Name,
			Contact: r.Fiduciary.Contact,
		},
		Purpose: PurposeResponse{
			ID:                  r.Purpose.ID.String(),
			Name:                r.Purpose.Name,
			Description:         r.Purpose.Description,
			DataCategories:      r.Purpose.DataCategories,
			LegalBasis:          string(r.Purpose.LegalBasis),
			RetentionPeriodDays: r.Purpose.RetentionPeriodDays,
		},
		Status:           string(r.Status),
		GrantedAt:        r.GrantedAt,
		ExpiresAt:        r.ExpiresAt,
		RevokedAt:        r.RevokedAt,
		RenewedAt:        r.RenewedAt,
		ReceiptID:        r.ReceiptID.String(),
		ReceiptSignature: r.ReceiptSignature,
	}
}

func toConsentResponse(v *service.ConsentView) *ConsentResponse {
	resp := toRecordResponse(v.Record)
	resp.Status = string(v.Status)
	return &ConsentResponse{
		RecordResponse:  *resp,
		ExpiringSoon:    v.ExpiringSoon,
		DaysUntilExpiry: v.DaysUntilExpy,
	}
}

func filterFromQuery(r *http.Request) (*models.RecordFilter, error) {
	q := r.URL.Query()
	filter := &models.RecordFilter{}
	if raw := q.Get("purpose_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid purpose_id filter")
		}
		filter.PurposeID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid status filter")
		}
		filter.Status = &status
	}
	return filter, nil
}

// decodeOptional parses a JSON body when one is present; an empty body is
// not an error.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
