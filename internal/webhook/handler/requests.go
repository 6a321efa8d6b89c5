package handler

import (
	"time"

	"consentd/internal/webhook/models"
	"consentd/internal/webhook/service"
)

// RegistrationResponse is the outward view of a registration. The signing
// secret is deliberately absent.
type RegistrationResponse struct {
	ID          string             `json:"id"`
	FiduciaryID string             `json:"fiduciary_id"`
	Name        string             `json:"name"`
	URL         string             `json:"url"`
	Events      []models.EventType `json:"events"`
	Active      bool               `json:"active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// CreatedResponse carries the one-time plaintext secret alongside the
// registration.
type CreatedResponse struct {
	Webhook *RegistrationResponse `json:"webhook"`
	Secret  string                `json:"secret"`
}

type ListResponse struct {
	Webhooks []*RegistrationResponse `json:"webhooks"`
	Total    int                     `json:"total"`
}

type DeliveriesResponse struct {
	Deliveries []*models.DeliveryAttempt `json:"deliveries"`
	Total      int                       `json:"total"`
	Counts     map[string]int            `json:"counts"`
}

func toDeliveriesResponse(page *service.DeliveryPage) *DeliveriesResponse {
	counts := make(map[string]int, len(page.Counts))
	for status, n := range page.Counts {
		counts[string(status)] = n
	}
	return &DeliveriesResponse{
		Deliveries: page.Attempts,
		Total:      len(page.Attempts),
		Counts:     counts,
	}
}

func toRegistrationResponse(reg *models.Registration) *RegistrationResponse {
	return &RegistrationResponse{
		ID:          reg.ID.String(),
		FiduciaryID: reg.FiduciaryID.String(),
		Name:        reg.Name,
		URL:         reg.URL,
		Events:      reg.Events,
		Active:      reg.Active,
		CreatedAt:   reg.CreatedAt,
		UpdatedAt:   reg.UpdatedAt,
	}
}

func toCreatedResponse(created *service.Created) *CreatedResponse {
	return &CreatedResponse{
		Webhook: toRegistrationResponse(created.Registration),
		Secret:  created.Secret,
	}
}
