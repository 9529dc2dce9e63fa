package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
)

// Caller is the identity a request acts as.
type Caller struct {
	UserID identity.ID
	Role   string
}

// Resolver extracts the caller from a request. ok is false when the request
// carries no usable credentials.
type Resolver func(r *http.Request) (Caller, bool)

type callerContextKey struct{}

// WithCaller stores caller in ctx along with the actor and client IP read by
// engine audit events.
func WithCaller(ctx context.Context, caller Caller, ip string) context.Context {
	ctx = context.WithValue(ctx, callerContextKey{}, caller)
	ctx = goOverlay.WithActor(ctx, caller.UserID.String())
	return goOverlay.WithClientIP(ctx, ip)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerContextKey{}).(Caller)
	return c, ok
}

// Guard rejects requests without a caller (401), from hidden identities (401)
// and from suspended identities (403, with the suspension notice in the
// body). Accepted requests carry the Caller, and the engine context values
// used by audit events.
func Guard(engine *goOverlay.Engine, resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || resolve == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			caller, ok := resolve(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if code, msg := Admit(r.Context(), engine, caller); code != 0 {
				writeError(w, code, msg)
				return
			}

			ctx := WithCaller(r.Context(), caller, ClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admit reports whether caller may proceed. A zero code admits; otherwise code
// and msg are the HTTP status and error text to reject with.
func Admit(ctx context.Context, engine *goOverlay.Engine, caller Caller) (code int, msg string) {
	if caller.UserID.IsZero() || engine.IsDeleted(ctx, caller.UserID) {
		return http.StatusUnauthorized, "unauthorized"
	}
	if status := engine.CheckSuspension(ctx, caller.UserID); status.IsSuspended {
		return http.StatusForbidden, status.Message
	}
	return 0, ""
}

// RequireAdmin must run inside Guard. It answers 403 unless the caller's role
// is one of the engine's admin roles.
func RequireAdmin(engine *goOverlay.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !engine.IsAdmin(caller.Role) {
				writeError(w, http.StatusForbidden, goOverlay.ErrPermissionDenied.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address
// without its port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}
