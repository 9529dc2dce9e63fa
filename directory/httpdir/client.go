// Package httpdir talks to a remote user directory over HTTP and JSON.
//
// Expected endpoints, relative to the base URL:
//
//	POST  auth/login    {"email", "password"} -> {"user": {...}, "token": "..."}
//	GET   users         -> [{...}] or {"users": [{...}]}
//	GET   users/{id}    -> {...}
//	PATCH users/{id}    partial record -> {...}
//
// User records may name the identity "id", "userId" or both; they are
// normalized before they reach the overlay.
package httpdir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
)

const maxBody = 4 << 20

// StatusError is returned for a non-success response the client does not map
// to a sentinel.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("httpdir: %s %s: status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client implements goOverlay.Directory.
type Client struct {
	base   *url.URL
	http   *http.Client
	token  string
	logger *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBearerToken authenticates listing and update requests.
func WithBearerToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("httpdir: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("httpdir: base url %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ goOverlay.Directory = (*Client)(nil)

func (c *Client) Authenticate(ctx context.Context, email, password string) (goOverlay.AuthResult, error) {
	var resp struct {
		User  map[string]any `json:"user"`
		Token string         `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, false, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
			return goOverlay.AuthResult{}, goOverlay.ErrInvalidCredentials
		}
		return goOverlay.AuthResult{}, err
	}

	p := profileFromRecord(resp.User)
	if p.Identity().IsZero() {
		return goOverlay.AuthResult{}, errors.New("httpdir: login response carries no identity")
	}
	return goOverlay.AuthResult{
		User:         identity.Ref{ID: p.ID, UserID: p.UserID},
		DisplayName:  p.DisplayName,
		Email:        p.Email,
		Role:         p.Role,
		SessionToken: resp.Token,
	}, nil
}

func (c *Client) ListIdentities(ctx context.Context) ([]goOverlay.Profile, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "users", nil, true, &raw); err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := decodeJSON(raw, &records); err != nil {
		var wrapped struct {
			Users []map[string]any `json:"users"`
		}
		if err2 := decodeJSON(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("httpdir: decode users: %w", err)
		}
		records = wrapped.Users
	}

	out := make([]goOverlay.Profile, 0, len(records))
	for _, rec := range records {
		p := profileFromRecord(rec)
		if p.Identity().IsZero() {
			c.logger.Warn("httpdir: skipping user record without identity")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) GetIdentity(ctx context.Context, id identity.ID) (goOverlay.Profile, error) {
	var rec map[string]any
	if err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(id.String()), nil, true, &rec); err != nil {
		return goOverlay.Profile{}, notFound(err)
	}
	return profileFromRecord(rec), nil
}

func (c *Client) UpdateIdentity(ctx context.Context, id identity.ID, patch map[string]any) (goOverlay.Profile, error) {
	var rec map[string]any
	if err := c.do(ctx, http.MethodPatch, "users/"+url.PathEscape(id.String()), patch, true, &rec); err != nil {
		return goOverlay.Profile{}, notFound(err)
	}
	return profileFromRecord(rec), nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, auth bool, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("httpdir: request path: %w", err)
	}
	target := c.base.ResolveReference(ref)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpdir: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("httpdir: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", goOverlay.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", goOverlay.ErrDirectoryUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		c.logger.Warn("httpdir: directory error", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s %s: status %d", goOverlay.ErrDirectoryUnavailable, method, path, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decodeJSON(data, out); err != nil {
		return fmt.Errorf("httpdir: decode %s %s: %w", method, path, err)
	}
	return nil
}

func notFound(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return goOverlay.ErrIdentityNotFound
	}
	return err
}

// decodeJSON keeps numbers as json.Number so numeric identities survive
// without float rounding.
func decodeJSON(data []byte, out any) error {
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

var knownFields = map[string]struct{}{
	identity.FieldID:    {},
	identity.FieldAlias: {},
	"displayName":       {},
	"name":              {},
	"email":             {},
	"role":              {},
}

func profileFromRecord(rec map[string]any) goOverlay.Profile {
	rec = identity.Normalize(rec)
	id, _ := identity.Of(rec)

	p := goOverlay.Profile{
		ID:          id,
		UserID:      id,
		DisplayName: stringField(rec, "displayName"),
		Email:       stringField(rec, "email"),
		Role:        stringField(rec, "role"),
	}
	if p.DisplayName == "" {
		p.DisplayName = stringField(rec, "name")
	}
	for k, v := range rec {
		if _, known := knownFields[k]; known {
			continue
		}
		if p.Fields == nil {
			p.Fields = make(map[string]any)
		}
		p.Fields[k] = v
	}
	return p
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}
