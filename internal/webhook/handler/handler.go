package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"consentd/internal/audit"
	"consentd/internal/platform/middleware"
	"consentd/internal/transport/httputil"
	"consentd/internal/webhook/models"
	"consentd/internal/webhook/service"
	dErrors "consentd/pkg/domain-errors"
)

// Service defines the registration operations the HTTP layer exposes.
type Service interface {
	Create(ctx context.Context, actor middleware.Identity, origin audit.Origin, req service.CreateRequest) (*service.Created, error)
	List(ctx context.Context, actor middleware.Identity) ([]*models.Registration, error)
	Get(ctx context.Context, actor middleware.Identity, id uuid.UUID) (*models.Registration, error)
	Update(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID, req service.UpdateRequest) (*models.Registration, error)
	Delete(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID) error
	RotateSecret(ctx context.Context, actor middleware.Identity, origin audit.Origin, id uuid.UUID) (*service.Created, error)
	SendTest(ctx context.Context, actor middleware.Identity, id uuid.UUID) (*models.DeliveryAttempt, error)
	Deliveries(ctx context.Context, actor middleware.Identity, id uuid.UUID, limit int) (*service.DeliveryPage, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks", h.HandleCreate)
	r.Get("/webhooks", h.HandleList)
	r.Get("/webhooks/{id}", h.HandleGet)
	r.Patch("/webhooks/{id}", h.HandleUpdate)
	r.Delete("/webhooks/{id}", h.HandleDelete)
	r.Post("/webhooks/{id}/rotate", h.HandleRotateSecret)
	r.Post("/webhooks/{id}/test", h.HandleSendTest)
	r.Get("/webhooks/{id}/deliveries", h.HandleDeliveries)
}

// HandleCreate registers an endpoint. The response carries the plaintext
// signing secret; it is never retrievable again.
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

	created, err := h.service.Create(ctx, actor, audit.OriginFromRequest(r), req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create webhook failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCreatedResponse(created))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	regs, err := h.service.List(ctx, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*RegistrationResponse, 0, len(regs))
	for _, reg := range regs {
		out = append(out, toRegistrationResponse(reg))
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Webhooks: out, Total: len(out)})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}
	reg, err := h.service.Get(ctx, actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(reg))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}
	req, ok := httputil.Decode[service.UpdateRequest](w, r)
	if !ok {
		return
	}

	reg, err := h.service.Update(ctx, actor, audit.OriginFromRequest(r), id, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update webhook failed", "error", err, "registration_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(reg))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}
	if err := h.service.Delete(ctx, actor, audit.OriginFromRequest(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRotateSecret mints a fresh signing secret and returns it once.
func (h *Handler) HandleRotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}
	rotated, err := h.service.RotateSecret(ctx, actor, audit.OriginFromRequest(r), id)
	if err != nil {
		h.logger.ErrorContext(ctx, "rotate webhook secret failed", "error", err, "registration_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCreatedResponse(rotated))
}

// HandleSendTest fires a synchronous test delivery and reports the outcome.
func (h *Handler) HandleSendTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}
	attempt, err := h.service.SendTest(ctx, actor, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attempt)
}

// HandleDeliveries returns recent delivery attempts, newest first.
func (h *Handler) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid registration id"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
	}

	page, err := h.service.Deliveries(ctx, actor, id, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDeliveriesResponse(page))
}
