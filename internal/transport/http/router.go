package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentd/internal/platform/middleware"
	"consentd/internal/transport/httputil"
)

// Registrar is implemented by each domain handler to mount its routes.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries the transport-level knobs for router assembly.
type Config struct {
	JWTSigningKey string
	// Handlers are mounted under the authenticated /v1 group in order.
	Handlers []Registrar
}

// NewRouter wires the public surface: health and metrics stay open, the /v1
// API requires a bearer token.
func NewRouter(cfg Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(middleware.ContentTypeJSON)
		v1.Use(middleware.Auth(cfg.JWTSigningKey))
		for _, h := range cfg.Handlers {
			h.Register(v1)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
