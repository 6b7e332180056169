// Package api provides HTTP handlers for the growthdesk API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/growthdesk/internal/identity"
	"github.com/ashureev/growthdesk/internal/session"
)

const maxBodyBytes = 1 << 20

// ProfileStore is the profile persistence the handlers need.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (map[string]string, error)
	PutProfile(ctx context.Context, userID string, values map[string]string) error
	DeleteProfile(ctx context.Context, userID string) error
}

// Info describes the running service for GET /api/config.
type Info struct {
	Backend      string `json:"backend"`
	ServeBackend bool   `json:"serve_backend"`
	Events       bool   `json:"events"`
	GRPC         bool   `json:"grpc"`
}

// Handler provides the per-user chat, workflow and profile endpoints.
type Handler struct {
	profiles ProfileStore
	sessions *session.Manager
	limiter  *RateLimiter
	info     Info
}

// NewHandler creates a new Handler. A nil limiter disables rate limiting.
func NewHandler(profiles ProfileStore, sessions *session.Manager, limiter *RateLimiter, info Info) *Handler {
	return &Handler{
		profiles: profiles,
		sessions: sessions,
		limiter:  limiter,
		info:     info,
	}
}

// RegisterRoutes registers the service API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)

	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.PutProfile)
	r.Delete("/api/profile", h.DeleteProfile)

	r.Get("/api/chat", h.GetChat)
	r.With(h.rateLimited).Post("/api/chat", h.PostChat)

	r.Get("/api/workflow", h.GetWorkflow)
	r.With(h.rateLimitedOp).Post("/api/workflow/{op}", h.PostWorkflow)

	r.Delete("/api/session", h.DeleteSession)
}

// GetConfig returns the backend kind and enabled features.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.info)
}

// DeleteSession drops the caller's instance. The next request starts fresh.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	h.sessions.Close(userID, sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) instance(r *http.Request) (*session.Instance, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		return nil, false
	}
	return h.sessions.Get(userID, identity.SessionIDFromContext(r.Context())), true
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}
	return userID, identity.SessionIDFromContext(r.Context()), true
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a size-limited JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
