package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
)

func newBackendServer(t *testing.T, conn generation.Connector, configured bool) (*httptest.Server, *generation.HTTPClient) {
	t.Helper()
	r := chi.NewRouter()
	NewBackend(conn, configured, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := generation.NewHTTPClient(generation.HTTPClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	return srv, client
}

func TestBackendRoundTrip(t *testing.T) {
	conn := newFakeConnector()
	_, client := newBackendServer(t, conn, true)
	ctx := context.Background()

	reply, err := client.ChatReply(ctx, generation.ChatRequest{
		Message:  "ideas?",
		Business: domain.DefaultBusinessContext(),
		Mode:     domain.TaskModeFor(domain.ModeContent),
		History:  []domain.Turn{{ID: 1, Role: domain.RoleAssistant, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Post daily on Instagram", reply)
	conn.mu.Lock()
	got := conn.chats[0]
	conn.mu.Unlock()
	assert.Equal(t, domain.ModeContent, got.Mode.Mode)
	require.Len(t, got.History, 1)
	assert.Equal(t, domain.RoleAssistant, got.History[0].Role)

	draft, err := client.TextContent(ctx, "bakery")
	require.NoError(t, err)
	assert.Equal(t, "POST IDEA: bakery", draft)

	pair, err := client.PromptPair(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "a warm bakery counter", pair.ImagePrompt)
	assert.Equal(t, "text, logos", pair.NegativePrompt)

	img, err := client.Image(ctx, pair.ImagePrompt)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img)

	require.NoError(t, client.Health(ctx))
}

func TestBackendFormatsParsedPrompts(t *testing.T) {
	conn := newFakeConnector()
	conn.prompt = func(string) (domain.PromptPair, error) {
		return domain.PromptPair{ImagePrompt: "sunlit loaf"}, nil
	}
	_, client := newBackendServer(t, conn, true)

	pair, err := client.PromptPair(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, "sunlit loaf", pair.ImagePrompt)
	assert.Equal(t, domain.NotAvailable, pair.NegativePrompt)
}

func TestBackendRequiresApproval(t *testing.T) {
	conn := newFakeConnector()
	srv, _ := newBackendServer(t, conn, true)

	for _, tc := range []struct {
		path string
		body string
	}{
		{generation.PathPrompts, `{"postContent":"draft"}`},
		{generation.PathImage, `{"imagePrompt":"loaf","approved":false}`},
	} {
		resp, err := http.Post(srv.URL+tc.path, "application/json", stringsReader(tc.body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, tc.path)
	}
	assert.Zero(t, conn.count(generation.StagePrompt))
	assert.Zero(t, conn.count(generation.StageImage))
}

func TestBackendMissingFields(t *testing.T) {
	srv, _ := newBackendServer(t, newFakeConnector(), true)

	for _, tc := range []struct {
		path string
		body string
	}{
		{generation.PathChat, `{"message":""}`},
		{generation.PathText, `{}`},
		{generation.PathPrompts, `{"approved":true}`},
		{generation.PathImage, `{"approved":true}`},
	} {
		resp, err := http.Post(srv.URL+tc.path, "application/json", stringsReader(tc.body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.path)
	}
}

func TestBackendFailureSurfacesReason(t *testing.T) {
	conn := newFakeConnector()
	conn.text = func(string) (string, error) {
		return "", &generation.Failure{Stage: generation.StageContent, Reason: "model overloaded"}
	}
	_, client := newBackendServer(t, conn, true)

	_, err := client.TextContent(context.Background(), "bakery")
	var f *generation.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, http.StatusInternalServerError, f.Status)
	assert.Equal(t, "model overloaded", f.Reason)
}

func TestBackendNotConfigured(t *testing.T) {
	conn := newFakeConnector()
	srv, client := newBackendServer(t, conn, false)

	_, err := client.ChatReply(context.Background(), generation.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.Zero(t, conn.count(generation.StageChat))

	resp, err := http.Get(srv.URL + generation.PathHealth)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, jsonDecode(resp, &body))
	assert.Equal(t, false, body["gemini_configured"])
}
