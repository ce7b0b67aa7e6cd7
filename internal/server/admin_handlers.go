package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quayside/storefront/internal/cart"
)

// adminCartView exposes the raw stored row, including lifecycle fields the
// customer-facing cart view hides.
type adminCartView struct {
	cartView
	Status     string     `json:"status"`
	Version    int64      `json:"version"`
	MergedInto *string    `json:"mergedInto,omitempty"`
	MergedAt   *time.Time `json:"mergedAt,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// HandleInspectCart serves the stored cart row for support tooling.
// Tombstones are returned as-is so an operator can trace where a guest cart
// went.
func HandleInspectCart(svc *cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		c, err := svc.Inspect(r.Context(), key)
		if err != nil {
			writeCartError(w, err)
			return
		}
		if c == nil {
			http.Error(w, "cart not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, adminCartView{
			cartView:   newCartView(c),
			Status:     string(c.Status),
			Version:    c.Version,
			MergedInto: c.MergedInto,
			MergedAt:   c.MergedAt,
			ExpiresAt:  c.ExpiresAt,
		})
	}
}
