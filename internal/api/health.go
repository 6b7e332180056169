package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks the remote generation backend.
type BackendChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db      Pinger
	backend BackendChecker
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. backend may be nil when the
// connector has no remote backend to probe.
func NewHealthHandler(db Pinger, backend BackendChecker) *HealthHandler {
	return &HealthHandler{db: db, backend: backend, timeout: defaultHealthCheckTimeout}
}

// Health returns the health status of the API and its dependencies. An
// unreachable database is fatal; an unreachable generation backend only
// degrades the status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "check", "database", "error", err)
		checks["database"] = "unreachable"
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.backend != nil {
		if err := h.backend.Health(ctx); err != nil {
			slog.Warn("Health check failed", "check", "generation", "error", err)
			checks["generation"] = "unreachable"
			status = "degraded"
		} else {
			checks["generation"] = "ok"
		}
	}

	JSON(w, statusCode, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
