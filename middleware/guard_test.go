package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/jwt"
)

func newTestEngine(t *testing.T) *goOverlay.Engine {
	t.Helper()
	engine, err := goOverlay.New().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestTokens(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("middleware-test-signing-key-0123456789"),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func issue(t *testing.T, m *jwt.Manager, id, role string) string {
	t.Helper()
	token, err := m.Issue(id, "", "", role)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

func callerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(c.UserID.String() + "/" + c.Role))
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardAcceptsValidCaller(t *testing.T) {
	engine := newTestEngine(t)
	tokens := newTestTokens(t)
	h := Guard(engine, BearerJWT(tokens))(callerEcho())

	rec := serve(h, issue(t, tokens, "42", "member"))
	if rec.Code != http.StatusOK || rec.Body.String() != "42/member" {
		t.Fatalf("expected 200 42/member, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGuardRejectsMissingOrInvalidToken(t *testing.T) {
	engine := newTestEngine(t)
	h := Guard(engine, BearerJWT(newTestTokens(t)))(callerEcho())

	for _, token := range []string{"", "not-a-token"} {
		if rec := serve(h, token); rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
	}

	other, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("a-different-signing-key-0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if rec := serve(h, issue(t, other, "42", "admin")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a foreign token, got %d", rec.Code)
	}
}

func TestGuardRejectsSuspendedCaller(t *testing.T) {
	engine := newTestEngine(t)
	tokens := newTestTokens(t)
	h := Guard(engine, BearerJWT(tokens))(callerEcho())

	if _, err := engine.Suspend(context.Background(), "42", "policy violation"); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	rec := serve(h, issue(t, tokens, "42", "member"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.HasPrefix(body["error"], "Your account is temporarily suspended.") ||
		!strings.HasSuffix(body["error"], "Reason: policy violation") {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestGuardRejectsDeletedCaller(t *testing.T) {
	engine := newTestEngine(t)
	tokens := newTestTokens(t)
	h := Guard(engine, BearerJWT(tokens))(callerEcho())

	if err := engine.MarkDeleted(context.Background(), "42"); err != nil {
		t.Fatalf("MarkDeleted failed: %v", err)
	}
	if rec := serve(h, issue(t, tokens, "42", "member")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	engine := newTestEngine(t)
	tokens := newTestTokens(t)
	h := Guard(engine, BearerJWT(tokens))(RequireAdmin(engine)(callerEcho()))

	if rec := serve(h, issue(t, tokens, "1", "admin")); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
	if rec := serve(h, issue(t, tokens, "2", "member")); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", rec.Code)
	}

	bare := RequireAdmin(engine)(callerEcho())
	if rec := serve(bare, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 outside Guard, got %d", rec.Code)
	}
}

type stubDirectory struct{}

func (stubDirectory) Authenticate(ctx context.Context, email, password string) (goOverlay.AuthResult, error) {
	return goOverlay.AuthResult{User: identity.Ref{UserID: "5"}, Role: "admin"}, nil
}

func (stubDirectory) ListIdentities(context.Context) ([]goOverlay.Profile, error) { return nil, nil }

func (stubDirectory) GetIdentity(context.Context, identity.ID) (goOverlay.Profile, error) {
	return goOverlay.Profile{}, goOverlay.ErrIdentityNotFound
}

func (stubDirectory) UpdateIdentity(context.Context, identity.ID, map[string]any) (goOverlay.Profile, error) {
	return goOverlay.Profile{}, goOverlay.ErrIdentityNotFound
}

func TestFromSession(t *testing.T) {
	engine, err := goOverlay.New().WithDirectory(stubDirectory{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	h := Guard(engine, FromSession(engine))(callerEcho())

	if rec := serve(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", rec.Code)
	}
	if _, err := engine.Login(context.Background(), "ops@example.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if rec := serve(h, ""); rec.Code != http.StatusOK || rec.Body.String() != "5/admin" {
		t.Fatalf("expected 200 5/admin, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:4312"
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Fatalf("expected 2001:db8::1, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected 203.0.113.9, got %q", got)
	}
}
