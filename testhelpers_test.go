package goOverlay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/kv"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockUser struct {
	profile  Profile
	password string
	ref      identity.Ref
	token    string
}

// mockDirectory is an in-package Directory. Authenticate hands back the ref
// exactly as configured so tests can exercise either identity field.
type mockDirectory struct {
	mu        sync.Mutex
	users     map[string]*mockUser
	authCalls int
	listErr   error
	authErr   error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{users: map[string]*mockUser{}}
}

func (d *mockDirectory) add(email, password string, ref identity.Ref, name, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[email] = &mockUser{
		profile: Profile{
			ID:          ref.ID,
			UserID:      ref.UserID,
			DisplayName: name,
			Email:       email,
			Role:        role,
		},
		password: password,
		ref:      ref,
	}
}

func (d *mockDirectory) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.authCalls++
	if d.authErr != nil {
		return AuthResult{}, d.authErr
	}
	u, ok := d.users[email]
	if !ok || u.password != password {
		return AuthResult{}, ErrInvalidCredentials
	}
	return AuthResult{
		User:         u.ref,
		DisplayName:  u.profile.DisplayName,
		Email:        email,
		Role:         u.profile.Role,
		SessionToken: u.token,
	}, nil
}

func (d *mockDirectory) ListIdentities(ctx context.Context) ([]Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := make([]Profile, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (d *mockDirectory) GetIdentity(ctx context.Context, id identity.ID) (Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.profile.Identity() == id {
			return u.profile, nil
		}
	}
	return Profile{}, ErrIdentityNotFound
}

func (d *mockDirectory) UpdateIdentity(ctx context.Context, id identity.ID, patch map[string]any) (Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.profile.Identity() != id {
			continue
		}
		if v, ok := patch["displayName"].(string); ok {
			u.profile.DisplayName = v
		}
		return u.profile, nil
	}
	return Profile{}, ErrIdentityNotFound
}

func (d *mockDirectory) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authCalls
}

type testEngine struct {
	*Engine
	clock *testClock
	dir   *mockDirectory
	store *kv.MemoryStore
	logs  *bytes.Buffer
}

func buildTestEngine(t *testing.T, mutate func(*Builder)) *testEngine {
	t.Helper()

	clock := newTestClock()
	dir := newMockDirectory()
	store := kv.NewMemoryStore()
	logs := &bytes.Buffer{}

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	b := New().
		WithConfig(cfg).
		WithStore(store).
		WithDirectory(dir).
		WithClock(clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if mutate != nil {
		mutate(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, clock: clock, dir: dir, store: store, logs: logs}
}

// failingStore fails every write once armed, and the next readFailures reads.
type failingStore struct {
	kv.Store
	mu           sync.Mutex
	failOn       bool
	readFailures int
}

var errBackendDown = errors.New("backend down")

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.readFailures > 0
	if fail {
		s.readFailures--
	}
	s.mu.Unlock()
	if fail {
		return nil, errBackendDown
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) failReads(n int) {
	s.mu.Lock()
	s.readFailures = n
	s.mu.Unlock()
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failOn
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.Store.Set(ctx, key, value)
}

func (s *failingStore) arm() {
	s.mu.Lock()
	s.failOn = true
	s.mu.Unlock()
}

func eventTypes(events []ActivityEvent) string {
	parts := make([]string, len(events))
	for i, ev := range events {
		parts[i] = ev.Type
	}
	return strings.Join(parts, ",")
}
