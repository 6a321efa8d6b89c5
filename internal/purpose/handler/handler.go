package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"consentd/internal/audit"
	"consentd/internal/platform/middleware"
	"consentd/internal/purpose/models"
	"consentd/internal/purpose/service"
	"consentd/internal/transport/httputil"
	dErrors "consentd/pkg/domain-errors"
)

// Service defines the purpose registry operations the HTTP layer exposes.
type Service interface {
	Create(ctx context.Context, actor middleware.Identity, origin audit.Origin, req service.CreateRequest) (*models.Purpose, error)
	List(ctx context.Context, actor middleware.Identity) ([]*models.Purpose, error)
	Deactivate(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/purposes", h.HandleCreate)
	r.Get("/purposes", h.HandleList)
	r.Delete("/purposes/{id}", h.HandleDeactivate)
}

// HandleCreate publishes a purpose for the authenticated fiduciary.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.Decode[service.CreateRequest](w, r)
	if !ok {
		return
	}

	purpose, err := h.service.Create(ctx, actor, audit.OriginFromRequest(r), req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create purpose failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, purpose)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	purposes, err := h.service.List(ctx, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"purposes": purposes,
		"total":    len(purposes),
	})
}

// HandleDeactivate withdraws a purpose. Existing consents keep their
// snapshots.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid purpose id"))
		return
	}
	if err := h.service.Deactivate(ctx, actor, audit.OriginFromRequest(r), id); err != nil {
		h.logger.ErrorContext(ctx, "deactivate purpose failed", "error", err, "purpose_id", id)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
