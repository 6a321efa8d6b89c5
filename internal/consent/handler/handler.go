package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"consentd/internal/audit"
	"consentd/internal/consent/models"
	"consentd/internal/consent/service"
	"consentd/internal/platform/middleware"
	"consentd/internal/transport/httputil"
	dErrors "consentd/pkg/domain-errors"
)

// Ledger defines the consent operations the HTTP layer exposes. Returns
// domain objects, not response DTOs.
type Ledger interface {
	Grant(ctx context.Context, actor middleware.Identity, origin audit.Origin, purposeID uuid.UUID) (*models.Record, error)
	Revoke(ctx context.Context, actor middleware.Identity, origin audit.Origin, consentID uuid.UUID, reason string) (*models.Record, error)
	Renew(ctx context.Context, actor middleware.Identity, origin audit.Origin, consentID uuid.UUID) (*models.Record, error)
	Get(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) (*service.ConsentView, error)
	List(ctx context.Context, actor middleware.Identity, filter *models.RecordFilter) ([]*service.ConsentView, error)
	Receipt(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) (*service.ReceiptView, error)
	History(ctx context.Context, actor middleware.Identity, consentID uuid.UUID) ([]audit.Entry, error)
}

type Handler struct {
	ledger Ledger
	logger *slog.Logger
}

func New(ledger Ledger, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/consents", h.HandleGrant)
	r.Get("/consents", h.HandleList)
	r.Get("/consents/{id}", h.HandleGet)
	r.Post("/consents/{id}/revoke", h.HandleRevoke)
	r.Post("/consents/{id}/renew", h.HandleRenew)
	r.Get("/consents/{id}/receipt", h.HandleReceipt)
	r.Get("/consents/{id}/history", h.HandleHistory)
}

// HandleGrant records a new consent for the authenticated principal.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.Decode[GrantRequest](w, r)
	if !ok {
		return
	}
	purposeID, err := uuid.Parse(req.PurposeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid purpose id"))
		return
	}

	record, err := h.ledger.Grant(ctx, actor, audit.OriginFromRequest(r), purposeID)
	if err != nil {
		h.logger.ErrorContext(ctx, "grant consent failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

// HandleList returns the caller's consents, optionally filtered by purpose
// and status.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, err := h.ledger.List(ctx, actor, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list consents failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]*ConsentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toConsentResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, &ListResponse{Consents: out, Total: len(out)})
}

// HandleGet returns one consent with its read-time status.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	consentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	view, err := h.ledger.Get(ctx, actor, consentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(view))
}

// HandleRevoke withdraws a granted consent.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	consentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	// The reason is optional; an empty body is fine.
	var req RevokeRequest
	_ = decodeOptional(r, &req)

	record, err := h.ledger.Revoke(ctx, actor, audit.OriginFromRequest(r), consentID, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke consent failed", "error", err, "consent_id", consentID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

// HandleRenew extends a consent from now using its snapshotted retention.
func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	consentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	record, err := h.ledger.Renew(ctx, actor, audit.OriginFromRequest(r), consentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "renew consent failed", "error", err, "consent_id", consentID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

// HandleHistory returns the audit trail of one consent, oldest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	consentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	entries, err := h.ledger.History(ctx, actor, consentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// HandleReceipt returns the recomputed, verified receipt for a consent.
func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	consentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent id"))
		return
	}

	view, err := h.ledger.Receipt(ctx, actor, consentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ReceiptResponse{
		Receipt:   view.Fields,
		Signature: view.Signature,
		Verified:  view.Verified,
	})
}
