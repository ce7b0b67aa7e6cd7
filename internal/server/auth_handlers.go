package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/quayside/storefront/internal/cart"
	"github.com/quayside/storefront/internal/identity"
	"github.com/quayside/storefront/internal/middleware"
	"github.com/quayside/storefront/internal/notify"
)

type signInRequest struct {
	Token string `json:"token"`
}

type signInResponse struct {
	UserID string   `json:"userId"`
	Role   string   `json:"role"`
	Merged bool     `json:"merged"`
	Cart   cartView `json:"cart"`
}

// HandleSignIn verifies a session token, folds the caller's guest cart into
// their user cart, and only then establishes the session cookie. If the
// merge cannot complete, no session is established and the client retries
// sign-in with both carts intact.
func HandleSignIn(verifier *identity.Verifier, svc *cart.Service, publisher notify.Publisher, cookieName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := signInToken(r)
		if raw == "" {
			http.Error(w, "missing credentials", http.StatusBadRequest)
			return
		}

		id, err := verifier.Verify(raw)
		if err != nil || !id.IsAuthenticated() {
			log.Printf("sign-in rejected: %v", err)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		guestID := ""
		if c, cookieErr := r.Cookie(identity.GuestCookieName); cookieErr == nil && identity.ValidGuestID(c.Value) {
			guestID = c.Value
		}

		var result *cart.MergeResult
		if guestID != "" {
			result, err = svc.MergeOnSignIn(r.Context(), guestID, id.UserID)
		} else {
			// Nothing to fold in; just load the user cart for the response.
			var userCart, getErr = svc.Get(r.Context(), cart.UserKey(id.UserID))
			result, err = &cart.MergeResult{UserCart: userCart}, getErr
		}
		if err != nil {
			writeCartError(w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    raw,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		middleware.ClearGuestCookie(w)

		merged := result.GuestLines > 0 && !result.AlreadyMerged

		publish(r.Context(), publisher, notify.NewEvent(notify.EventSignedIn, id))
		if merged {
			ev := notify.NewEvent(notify.EventCartMerged, id)
			ev.GuestID = guestID
			ev.Lines = result.GuestLines
			publish(r.Context(), publisher, ev)
		}

		writeJSON(w, http.StatusOK, signInResponse{
			UserID: id.UserID,
			Role:   string(id.Role),
			Merged: merged,
			Cart:   newCartView(result.UserCart),
		})
	}
}

// HandleSignOut clears the session cookie. The token itself stays valid
// until it expires; revocation is out of scope for this service.
func HandleSignOut(cookieName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// signInToken pulls the credential from the Authorization header or, for
// form-style clients, the JSON body.
func signInToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.Token
}

// publish sends an event and logs failures. A lost notification never fails
// the request that produced it.
func publish(ctx context.Context, publisher notify.Publisher, ev notify.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, ev); err != nil {
		log.Printf("publishing %s event: %v", ev.Type, err)
	}
}
