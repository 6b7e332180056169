package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/growthdesk/internal/domain"
)

type fakeUsers struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	lastSeen int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*domain.User)}
}

func (f *fakeUsers) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.UserID] = &cp
	return nil
}

func (f *fakeUsers) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen++
	if u, ok := f.users[userID]; ok {
		u.LastSeenAt = lastSeen
	}
	return nil
}

func TestMiddlewareIssuesCookieAndSession(t *testing.T) {
	users := newFakeUsers()
	var gotUser, gotSession string
	h := Middleware(users, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotSession = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/workflow", nil)
	req.Header.Set(SessionHeaderName, "tab-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !isValidAnonID(gotUser) {
		t.Fatalf("expected generated anon id, got %q", gotUser)
	}
	if gotSession != "tab-42" {
		t.Fatalf("expected session tab-42, got %q", gotSession)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != gotUser {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if _, ok := users.users[gotUser]; !ok {
		t.Fatal("expected user to be created")
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	users := newFakeUsers()
	id := "anon_0123456789abcdef0123456789abcdef"
	users.users[id] = &domain.User{UserID: id, LastSeenAt: time.Now().Add(-time.Hour)}

	var gotUser string
	h := Middleware(users, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != id {
		t.Fatalf("expected %q, got %q", id, gotUser)
	}
	if users.lastSeen != 1 {
		t.Fatalf("expected last seen to be refreshed once, got %d", users.lastSeen)
	}

	h.ServeHTTP(httptest.NewRecorder(), req)
	if users.lastSeen != 1 {
		t.Fatalf("expected last seen refresh to be throttled, got %d", users.lastSeen)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	tests := map[string]string{
		"":             DefaultSessionIDValue,
		"  tab-1 ":     "tab-1",
		"bad session!": DefaultSessionIDValue,
		"a:b.c_d-e":    "a:b.c_d-e",
	}
	for in, want := range tests {
		if got := sanitizeSessionID(in); got != want {
			t.Errorf("sanitizeSessionID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionIDFallsBackToQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/workflow?session_id=tab-9", nil)
	if got := sessionIDFromRequest(req); got != "tab-9" {
		t.Fatalf("expected tab-9, got %q", got)
	}
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "anon_0123456789abcdef0123456789abcdef", "tab")
	if UserIDFromContext(ctx) == "" || UsernameFromContext(ctx) != "anon-89abcdef" || SessionIDFromContext(ctx) != "tab" {
		t.Fatalf("unexpected identity: %q %q %q", UserIDFromContext(ctx), UsernameFromContext(ctx), SessionIDFromContext(ctx))
	}
}

func TestGenerateAnonIDIsValid(t *testing.T) {
	id, err := generateAnonID()
	if err != nil {
		t.Fatalf("generateAnonID: %v", err)
	}
	if !isValidAnonID(id) {
		t.Fatalf("generated id %q does not match the cookie pattern", id)
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no identity on a bare context")
	}
	if got := SessionIDFromContext(context.Background()); got != DefaultSessionIDValue {
		t.Fatalf("expected default session, got %q", got)
	}

	ctx := WithIdentity(context.Background(), "anon_0123456789abcdef0123456789abcdef", "bad session!")
	id, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected identity")
	}
	if id.SessionID != DefaultSessionIDValue {
		t.Fatalf("expected invalid session to fall back to default, got %q", id.SessionID)
	}
}

func TestMiddlewareReplacesMalformedCookie(t *testing.T) {
	users := newFakeUsers()
	var gotUser string
	h := Middleware(users, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_not-hex"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotUser == "anon_not-hex" || !isValidAnonID(gotUser) {
		t.Fatalf("expected a fresh anon id, got %q", gotUser)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].Secure {
		t.Fatalf("expected one secure cookie outside development, got %+v", cookies)
	}
}
