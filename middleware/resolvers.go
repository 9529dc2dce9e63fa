package middleware

import (
	"net/http"
	"strings"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/jwt"
)

// BearerJWT resolves the caller from an "Authorization: Bearer" session token
// verified by tokens.
func BearerJWT(tokens *jwt.Manager) Resolver {
	return func(r *http.Request) (Caller, bool) {
		if tokens == nil {
			return Caller{}, false
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return Caller{}, false
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			return Caller{}, false
		}
		return Caller{UserID: identity.ID(claims.Subject), Role: claims.Role}, true
	}
}

// FromSession resolves every request to the engine's current session. It
// suits a local console serving the one signed-in user.
func FromSession(engine *goOverlay.Engine) Resolver {
	return func(*http.Request) (Caller, bool) {
		sess := engine.Session()
		if !sess.Authenticated {
			return Caller{}, false
		}
		return Caller{UserID: sess.UserID, Role: sess.Role}, true
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
