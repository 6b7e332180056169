package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeChecker struct{ err error }

func (f fakeChecker) Health(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         error
		backend    BackendChecker
		wantCode   int
		wantStatus string
		wantChecks map[string]any
	}{
		{
			name:       "healthy without backend",
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]any{"api": "ok", "database": "ok"},
		},
		{
			name:       "database down",
			db:         errors.New("closed"),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantChecks: map[string]any{"api": "ok", "database": "unreachable"},
		},
		{
			name:       "backend down",
			backend:    fakeChecker{err: errors.New("refused")},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]any{"api": "ok", "database": "ok", "generation": "unreachable"},
		},
		{
			name:       "backend up",
			backend:    fakeChecker{},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]any{"api": "ok", "database": "ok", "generation": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakePinger{err: tt.db}, tt.backend)
			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.wantCode, w.Code)
			got := decode[map[string]any](t, w)
			assert.Equal(t, tt.wantStatus, got["status"])
			assert.Equal(t, tt.wantChecks, got["checks"])
		})
	}
}
