package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/quayside/storefront/internal/identity"
)

// NewAuthnMiddleware resolves the caller's identity from a session token and
// stores it in the request context. A missing or invalid token never blocks
// the request; the caller simply proceeds as anonymous and the route guard
// decides what the anonymous identity may reach.
func NewAuthnMiddleware(verifier *identity.Verifier, cookieName string) (func(http.Handler) http.Handler, error) {
	if verifier == nil {
		return nil, errors.New("authn middleware requires a token verifier")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r, cookieName)

			id, err := verifier.Verify(raw)
			if err != nil && !errors.Is(err, identity.ErrNoToken) {
				// The verifier already downgraded to anonymous; keep a
				// trace of why the token was rejected.
				log.Printf("session token rejected for %s %s: %v", r.Method, r.URL.Path, err)
			}

			ctx := identity.SetContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// extractToken prefers the Authorization header over the session cookie so
// API clients can override a stale browser session.
func extractToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}
