package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/growthdesk/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestChatReplySendsContextAndHistory(t *testing.T) {
	t.Parallel()

	var got ChatPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathChat, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "content": "Try a flash sale"})
	})

	reply, err := c.ChatReply(context.Background(), ChatRequest{
		Message:  "I want to promote my bakery",
		Business: domain.DefaultBusinessContext(),
		Mode:     domain.TaskModeFor(domain.ModeMarketing),
		History: []domain.Turn{
			{ID: 1, Role: domain.RoleAssistant, Text: "Hi!"},
			{ID: 2, Role: domain.RoleUser, Text: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Try a flash sale", reply)

	assert.Equal(t, "I want to promote my bakery", got.Message)
	assert.Equal(t, domain.ModeMarketing, got.TaskMode.Mode)
	assert.Equal(t, "Solo", got.BusinessContext.TeamSize)
	require.Len(t, got.History, 2)
	assert.Equal(t, WireTypeAI, got.History[0].Type)
	assert.Equal(t, WireTypeUser, got.History[1].Type)
}

func TestChatReplyFallsBackToMessageField(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "only message"})
	})
	reply, err := c.ChatReply(context.Background(), ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "only message", reply)
}

func TestChatReplyNon2xxIsFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Gemini API key not configured",
			"message": "Please configure GEMINI_API_KEY in your .env file",
		})
	})
	_, err := c.ChatReply(context.Background(), ChatRequest{Message: "hi"})

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusInternalServerError, f.Status)
	assert.Equal(t, "Please configure GEMINI_API_KEY in your .env file", f.Reason)
}

func TestTextContentSuccessFalse(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StageResult{Success: false, Error: "rate limited"})
	})
	_, err := c.TextContent(context.Background(), "bakery")

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageContent, f.Stage)
	assert.Equal(t, "rate limited", UserMessage(err))
}

func TestPromptPairMissingFieldIsMalformed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var p PromptsPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.True(t, p.Approved)
		writeJSON(w, http.StatusOK, StageResult{Success: true})
	})
	_, err := c.PromptPair(context.Background(), "approved content")

	var m *MalformedResponse
	require.ErrorAs(t, err, &m)
	assert.Equal(t, "prompts", m.Field)
	assert.True(t, IsFailure(err))
}

func TestPromptPairParsesMarkers(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StageResult{Success: true, Prompts: "IMAGE PROMPT: crusty bread\nNEGATIVE PROMPT: blurry"})
	})
	pair, err := c.PromptPair(context.Background(), "approved content")
	require.NoError(t, err)
	assert.Equal(t, "crusty bread", pair.ImagePrompt)
	assert.Equal(t, "blurry", pair.NegativePrompt)
}

func TestImageDecodesBase64(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 'P', 'N', 'G'}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StageResult{Success: true, Image: base64.StdEncoding.EncodeToString(png)})
	})
	got, err := c.Image(context.Background(), "crusty bread")
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestImageInvalidBase64IsMalformed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StageResult{Success: true, Image: "%%%not-base64"})
	})
	_, err := c.Image(context.Background(), "crusty bread")

	var m *MalformedResponse
	require.ErrorAs(t, err, &m)
	assert.Equal(t, StageImage, m.Stage)
}

func TestForbiddenWithoutBodyIsFailure(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := c.Image(context.Background(), "bread")

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, http.StatusForbidden, f.Status)
}

func TestTransportErrorIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: url, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.TextContent(context.Background(), "bakery")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Zero(t, f.Status)
	assert.NotNil(t, f.Unwrap())
}

func TestNewHTTPClientValidatesURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPClient(HTTPClientConfig{}, nil)
	assert.ErrorIs(t, err, errEmptyBaseURL)

	_, err = NewHTTPClient(HTTPClientConfig{BaseURL: "ftp://example.com"}, nil)
	assert.Error(t, err)
}
