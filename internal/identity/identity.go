// Package identity resolves the anonymous device identity and the tab
// session that scope every growthdesk instance.
package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	AnonCookieName        = "growthdesk_anon_id"
	SessionHeaderName     = "X-Growth-Session-ID"
	DefaultSessionIDValue = "default"
	anonPrefix            = "anon_"
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Identity is the caller a request acts for. UserID names the device and
// SessionID the browser tab; together they key one session instance.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

type ctxKey struct{}

// New builds an Identity, normalizing the session ID.
func New(userID, sessionID string) Identity {
	return Identity{
		UserID:    userID,
		Username:  deriveUsername(userID),
		SessionID: sanitizeSessionID(sessionID),
	}
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity returns ctx carrying the given user and session.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, New(userID, sessionID))
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// UsernameFromContext extracts the username from the request context.
func UsernameFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.Username
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.SessionID
	}
	return DefaultSessionIDValue
}

func generateAnonID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return anonPrefix + strings.ReplaceAll(u.String(), "-", ""), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func deriveUsername(userID string) string {
	if len(userID) > len(anonPrefix)+8 {
		return "anon-" + userID[len(userID)-8:]
	}
	return "anon-user"
}
