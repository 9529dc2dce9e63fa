// Package memdir is an in-process user directory for local runs, demos and
// tests. Passwords are kept as Argon2id hashes and successful logins are
// issued a signed session token.
package memdir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/jwt"
	"github.com/MrEthical07/goOverlay/password"
)

// User is one seed entry. Password is hashed on Add; PasswordHash is taken as
// is and wins when both are set.
type User struct {
	ID           identity.ID    `yaml:"id"`
	DisplayName  string         `yaml:"display_name"`
	Email        string         `yaml:"email"`
	Role         string         `yaml:"role"`
	Password     string         `yaml:"password"`
	PasswordHash string         `yaml:"password_hash"`
	Fields       map[string]any `yaml:"fields"`
}

// Seed is the YAML document read by LoadFile.
type Seed struct {
	Users []User `yaml:"users"`
}

var ErrEmailTaken = errors.New("memdir: email already registered")

type record struct {
	profile goOverlay.Profile
	hash    string
}

// Directory implements goOverlay.Directory. It is safe for concurrent use.
type Directory struct {
	hasher *password.Hasher
	tokens *jwt.Manager
	logger *slog.Logger

	mu      sync.RWMutex
	order   []identity.ID
	users   map[identity.ID]*record
	byEmail map[string]identity.ID
}

// New returns an empty directory. tokens may be nil, in which case logins
// carry no session token.
func New(hasher *password.Hasher, tokens *jwt.Manager, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger,
		users:   make(map[identity.ID]*record),
		byEmail: make(map[string]identity.ID),
	}
}

var _ goOverlay.Directory = (*Directory)(nil)

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("memdir: parse seed: %w", err)
	}
	return seed, nil
}

// LoadFile builds a directory from a YAML seed file.
func LoadFile(path string, hasher *password.Hasher, tokens *jwt.Manager, logger *slog.Logger) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memdir: read seed: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return nil, err
	}
	d := New(hasher, tokens, logger)
	for i, u := range seed.Users {
		if err := d.Add(u); err != nil {
			return nil, fmt.Errorf("memdir: seed user %d: %w", i, err)
		}
	}
	return d, nil
}

// Add registers u. The identity and email must be unique.
func (d *Directory) Add(u User) error {
	id := identity.ID(strings.TrimSpace(u.ID.String()))
	if id.IsZero() {
		return goOverlay.ErrIdentityRequired
	}
	email := normalizeEmail(u.Email)
	if email == "" {
		return errors.New("memdir: email required")
	}

	hash := u.PasswordHash
	if hash == "" {
		if u.Password == "" {
			return errors.New("memdir: password or password_hash required")
		}
		var err error
		if hash, err = d.hasher.Hash(u.Password); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[id]; exists {
		return fmt.Errorf("memdir: identity %s already registered", id)
	}
	if _, taken := d.byEmail[email]; taken {
		return ErrEmailTaken
	}

	d.users[id] = &record{
		profile: goOverlay.Profile{
			ID:          id,
			UserID:      id,
			DisplayName: u.DisplayName,
			Email:       email,
			Role:        u.Role,
			Fields:      cloneFields(u.Fields),
		},
		hash: hash,
	}
	d.byEmail[email] = id
	d.order = append(d.order, id)
	return nil
}

func (d *Directory) Authenticate(ctx context.Context, email, plain string) (goOverlay.AuthResult, error) {
	d.mu.RLock()
	id, ok := d.byEmail[normalizeEmail(email)]
	var rec record
	if ok {
		rec = *d.users[id]
	}
	d.mu.RUnlock()

	if !ok {
		return goOverlay.AuthResult{}, goOverlay.ErrInvalidCredentials
	}
	if err := d.hasher.Compare(rec.hash, plain); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			d.logger.Warn("memdir: stored hash unusable", "user_id", id.String(), "error", err)
		}
		return goOverlay.AuthResult{}, goOverlay.ErrInvalidCredentials
	}
	d.rehash(id, rec.hash, plain)

	res := goOverlay.AuthResult{
		User:        identity.Ref{ID: id, UserID: id},
		DisplayName: rec.profile.DisplayName,
		Email:       rec.profile.Email,
		Role:        rec.profile.Role,
	}
	if d.tokens != nil {
		token, err := d.tokens.Issue(id.String(), rec.profile.DisplayName, rec.profile.Email, rec.profile.Role)
		if err != nil {
			return goOverlay.AuthResult{}, fmt.Errorf("memdir: issue token: %w", err)
		}
		res.SessionToken = token
	}
	return res, nil
}

// rehash upgrades a hash produced with weaker parameters after a successful
// login.
func (d *Directory) rehash(id identity.ID, old, plain string) {
	stale, err := d.hasher.NeedsRehash(old)
	if err != nil || !stale {
		return
	}
	fresh, err := d.hasher.Hash(plain)
	if err != nil {
		d.logger.Warn("memdir: rehash failed", "user_id", id.String(), "error", err)
		return
	}
	d.mu.Lock()
	if rec, ok := d.users[id]; ok && rec.hash == old {
		rec.hash = fresh
	}
	d.mu.Unlock()
}

func (d *Directory) ListIdentities(ctx context.Context) ([]goOverlay.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]goOverlay.Profile, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, copyProfile(d.users[id].profile))
	}
	return out, nil
}

func (d *Directory) GetIdentity(ctx context.Context, id identity.ID) (goOverlay.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.users[id]
	if !ok {
		return goOverlay.Profile{}, goOverlay.ErrIdentityNotFound
	}
	return copyProfile(rec.profile), nil
}

// UpdateIdentity applies patch. displayName, email and role update the
// matching profile fields, a nil value removes an extra field and the
// identity fields are ignored.
func (d *Directory) UpdateIdentity(ctx context.Context, id identity.ID, patch map[string]any) (goOverlay.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.users[id]
	if !ok {
		return goOverlay.Profile{}, goOverlay.ErrIdentityNotFound
	}
	next := copyProfile(rec.profile)
	for k, v := range patch {
		switch k {
		case identity.FieldID, identity.FieldAlias:
		case "displayName":
			next.DisplayName = fmt.Sprint(v)
		case "role":
			next.Role = fmt.Sprint(v)
		case "email":
			email := normalizeEmail(fmt.Sprint(v))
			if email == "" {
				return goOverlay.Profile{}, errors.New("memdir: email required")
			}
			if owner, taken := d.byEmail[email]; taken && owner != id {
				return goOverlay.Profile{}, ErrEmailTaken
			}
			next.Email = email
		default:
			if next.Fields == nil {
				next.Fields = make(map[string]any)
			}
			if v == nil {
				delete(next.Fields, k)
				continue
			}
			next.Fields[k] = v
		}
	}

	if next.Email != rec.profile.Email {
		delete(d.byEmail, rec.profile.Email)
		d.byEmail[next.Email] = id
	}
	rec.profile = next
	return copyProfile(next), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneFields(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyProfile(p goOverlay.Profile) goOverlay.Profile {
	p.Fields = cloneFields(p.Fields)
	return p
}
