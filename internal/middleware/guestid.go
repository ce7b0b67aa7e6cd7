package middleware

import (
	"log"
	"net/http"

	"github.com/quayside/storefront/internal/identity"
)

// GuestCookieTTL bounds how long an idle browser keeps the same guest
// identifier. Every response refreshes the deadline.
const GuestCookieTTL = 7 * 24 * 60 * 60 // seconds

// NewGuestIDMiddleware guarantees every request carries a usable guest
// identifier. Anonymous visitors get one minted on first contact; returning
// visitors keep the one in their cookie. Authenticated callers keep the
// cookie too, because the sign-in handler needs it to locate the cart to
// fold in.
func NewGuestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			existing := ""
			if c, err := r.Cookie(identity.GuestCookieName); err == nil {
				existing = c.Value
			}

			guestID, issued, err := identity.EnsureGuestID(existing)
			if err != nil {
				log.Printf("issuing guest id for %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			if issued {
				SetGuestCookie(w, guestID, r.TLS != nil)
			}

			id, _ := identity.FromContext(r.Context())
			id.GuestID = guestID
			ctx := identity.SetContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetGuestCookie writes the guest identifier cookie. The sign-in handler
// reuses it to clear the cookie once a guest cart has been folded in.
func SetGuestCookie(w http.ResponseWriter, guestID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.GuestCookieName,
		Value:    guestID,
		Path:     "/",
		MaxAge:   GuestCookieTTL,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearGuestCookie expires the guest identifier cookie.
func ClearGuestCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.GuestCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
