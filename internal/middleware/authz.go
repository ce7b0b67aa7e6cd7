package middleware

import (
	"errors"
	"net/http"

	"github.com/quayside/storefront/internal/guard"
	"github.com/quayside/storefront/internal/identity"
)

// NewAuthzMiddleware enforces the route table on every request. Denied
// requests are redirected rather than rejected: anonymous visitors go to the
// sign-in page, signed-in visitors without the required role go to a safe
// landing page.
func NewAuthzMiddleware(g *guard.Guard) (func(http.Handler) http.Handler, error) {
	if g == nil {
		return nil, errors.New("authz middleware requires a route guard")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := identity.FromContext(r.Context())

			decision := g.Authorize(id, r.URL.Path)
			if !decision.Allowed {
				http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
