package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/generation"
	"github.com/ashureev/growthdesk/internal/workflow"
)

func TestGetChatStartsWithGreeting(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/chat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[ChatResponse](t, w)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, workflow.Greeting, got.Turns[0].Text)
	assert.False(t, got.Busy)
}

func TestPostChat(t *testing.T) {
	env := newTestEnv(t, nil)
	env.profiles.values[testUser] = map[string]string{domain.KeyBusinessType: "Bakery"}

	w := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "How do I promote my bakery?"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[ChatResponse](t, w)

	assert.Equal(t, domain.ModeMarketing, got.Mode.Mode)
	require.Len(t, got.Turns, 3)
	assert.Equal(t, domain.RoleUser, got.Turns[1].Role)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "Post daily on Instagram", got.Reply.Text)
	assert.Empty(t, got.Error)

	env.conn.mu.Lock()
	req := env.conn.chats[0]
	env.conn.mu.Unlock()
	assert.Equal(t, "Bakery", req.Business.BusinessType)
	assert.Equal(t, domain.DefaultBudget, req.Business.Budget)
}

func TestPostChatBlankMessage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, env.conn.count(generation.StageChat))
}

func TestPostChatFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.conn.chat = func(generation.ChatRequest) (string, error) {
		return "", &generation.Failure{Stage: generation.StageChat, Status: 500, Reason: "backend down"}
	}

	w := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[ChatResponse](t, w)

	assert.Equal(t, "backend down", got.Error)
	assert.Nil(t, got.Reply)
	last := got.Turns[len(got.Turns)-1]
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.True(t, strings.HasPrefix(last.Text, workflow.ErrorTurnPrefix))
}

func TestPostChatRateLimited(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Close)
	env := newTestEnv(t, limiter)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hi"}).Code)
	w := env.do(t, http.MethodPost, "/api/chat", ChatRequest{Message: "hi again"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads are never limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/chat", nil).Code)
}
