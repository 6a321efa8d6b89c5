package audit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentd/internal/platform/middleware"
	"consentd/internal/transport/httputil"
	dErrors "consentd/pkg/domain-errors"
)

// Handler exposes the actor-scoped audit trail. Callers only ever see their
// own entries.
type Handler struct {
	publisher *Publisher
	logger    *slog.Logger
}

func NewHandler(publisher *Publisher, logger *slog.Logger) *Handler {
	return &Handler{publisher: publisher, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
	r.Delete("/me", h.HandleErasure)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	entries, err := h.publisher.ListByActor(ctx, actor.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list audit entries failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// HandleErasure scrubs the caller's identity from the audit trail. Entries
// survive with their detail intact; the actor reference and origin metadata
// are anonymized.
func (h *Handler) HandleErasure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetIdentity(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	scrubbed, err := h.publisher.AnonymizeActor(ctx, actor.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "anonymize audit entries failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to anonymize audit entries"))
		return
	}
	h.logger.InfoContext(ctx, "audit trail anonymized", "entries", scrubbed)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"anonymized_entries": scrubbed,
	})
}
