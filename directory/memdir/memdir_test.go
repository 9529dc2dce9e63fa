package memdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/jwt"
	"github.com/MrEthical07/goOverlay/password"
)

func testHasher(t *testing.T, passes uint32) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Params{
		Memory:     8 * 1024,
		Passes:     passes,
		Lanes:      1,
		SaltLength: 16,
		KeyLength:  16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func testTokens(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("memdir-test-signing-key-32-bytes!!"),
		Issuer:        "memdir",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

const seedYAML = `
users:
  - id: 42
    display_name: Sam
    email: Sam@Example.com
    role: member
    password: lift-heavy
    fields:
      plan: gold
  - id: "7"
    display_name: Ops
    email: ops@example.com
    role: admin
    password: run-far
`

func TestLoadFileAndAuthenticate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	tokens := testTokens(t)
	d, err := LoadFile(path, testHasher(t, 1), tokens, nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	ctx := context.Background()

	res, err := d.Authenticate(ctx, " sam@example.com ", "lift-heavy")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if res.User.Canonical() != "42" || res.Role != "member" || res.DisplayName != "Sam" {
		t.Fatalf("unexpected result %+v", res)
	}
	claims, err := tokens.Parse(res.SessionToken)
	if err != nil {
		t.Fatalf("expected a valid token, got %v", err)
	}
	if claims.Subject != "42" || claims.Role != "member" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := d.Authenticate(ctx, "sam@example.com", "wrong"); !errors.Is(err, goOverlay.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := d.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, goOverlay.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	profiles, err := d.ListIdentities(ctx)
	if err != nil || len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d, %v", len(profiles), err)
	}
	if profiles[0].ID != "42" || profiles[0].Fields["plan"] != "gold" || profiles[1].ID != "7" {
		t.Fatalf("unexpected listing %+v", profiles)
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	d := New(testHasher(t, 1), nil, nil)
	if err := d.Add(User{ID: "1", Email: "a@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := d.Add(User{ID: "1", Email: "b@example.com", Password: "pw"}); err == nil {
		t.Fatal("expected duplicate identity to be rejected")
	}
	if err := d.Add(User{ID: "2", Email: "A@example.com", Password: "pw"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := d.Add(User{Email: "c@example.com", Password: "pw"}); !errors.Is(err, goOverlay.ErrIdentityRequired) {
		t.Fatalf("expected ErrIdentityRequired, got %v", err)
	}
	if err := d.Add(User{ID: "3", Email: "c@example.com"}); err == nil {
		t.Fatal("expected missing password to be rejected")
	}
}

func TestAuthenticateWithoutTokens(t *testing.T) {
	d := New(testHasher(t, 1), nil, nil)
	if err := d.Add(User{ID: "1", Email: "a@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	res, err := d.Authenticate(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if res.SessionToken != "" {
		t.Fatalf("expected no token, got %q", res.SessionToken)
	}
}

func TestAuthenticateUpgradesWeakHash(t *testing.T) {
	weak, err := testHasher(t, 1).Hash("pw")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	strong := testHasher(t, 2)
	d := New(strong, nil, nil)
	if err := d.Add(User{ID: "1", Email: "a@example.com", PasswordHash: weak}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := d.Authenticate(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	upgraded := d.users["1"].hash
	if upgraded == weak {
		t.Fatal("expected the hash to be upgraded")
	}
	if stale, _ := strong.NeedsRehash(upgraded); stale {
		t.Fatal("expected the upgraded hash to use current params")
	}
	if _, err := d.Authenticate(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("Authenticate with upgraded hash failed: %v", err)
	}
}

func TestUpdateIdentity(t *testing.T) {
	d := New(testHasher(t, 1), nil, nil)
	for _, u := range []User{
		{ID: "1", Email: "a@example.com", Password: "pw", Fields: map[string]any{"plan": "gold"}},
		{ID: "2", Email: "b@example.com", Password: "pw"},
	} {
		if err := d.Add(u); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	ctx := context.Background()

	p, err := d.UpdateIdentity(ctx, "1", map[string]any{
		"displayName": "Ada",
		"email":       "ada@example.com",
		"plan":        nil,
		"goal":        "10k",
		"id":          "99",
	})
	if err != nil {
		t.Fatalf("UpdateIdentity failed: %v", err)
	}
	if p.ID != "1" || p.DisplayName != "Ada" || p.Email != "ada@example.com" {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, ok := p.Fields["plan"]; ok || p.Fields["goal"] != "10k" {
		t.Fatalf("unexpected fields %v", p.Fields)
	}
	if _, err := d.Authenticate(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("expected login under the new email, got %v", err)
	}
	if _, err := d.Authenticate(ctx, "a@example.com", "pw"); !errors.Is(err, goOverlay.ErrInvalidCredentials) {
		t.Fatalf("expected the old email to stop working, got %v", err)
	}

	if _, err := d.UpdateIdentity(ctx, "2", map[string]any{"email": "ada@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := d.UpdateIdentity(ctx, "3", map[string]any{"goal": "x"}); !errors.Is(err, goOverlay.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestListingIsACopy(t *testing.T) {
	d := New(testHasher(t, 1), nil, nil)
	if err := d.Add(User{ID: "1", Email: "a@example.com", Password: "pw", Fields: map[string]any{"plan": "gold"}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	profiles, _ := d.ListIdentities(context.Background())
	profiles[0].Fields["plan"] = "free"

	p, _ := d.GetIdentity(context.Background(), "1")
	if p.Fields["plan"] != "gold" {
		t.Fatal("listing leaked internal state")
	}
}
