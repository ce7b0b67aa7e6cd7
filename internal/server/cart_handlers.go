package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quayside/storefront/internal/cart"
	"github.com/quayside/storefront/internal/catalog"
	"github.com/quayside/storefront/internal/db/models"
	"github.com/quayside/storefront/internal/identity"
)

// cartLineView is the wire shape of one cart line.
type cartLineView struct {
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	PriceSnapshot *int64 `json:"priceSnapshot,omitempty"`
}

// cartView is the wire shape of a cart. Lines are keyed by product id.
type cartView struct {
	Key       string                  `json:"key"`
	Kind      string                  `json:"kind"`
	Lines     map[string]cartLineView `json:"lines"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func newCartView(c *models.Cart) cartView {
	view := cartView{
		Key:       c.Key,
		Kind:      string(c.Kind),
		Lines:     make(map[string]cartLineView, len(c.Lines)),
		UpdatedAt: c.UpdatedAt,
	}
	for productID, line := range c.Lines {
		view.Lines[productID] = cartLineView{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			PriceSnapshot: line.PriceSnapshot,
		}
	}
	return view
}

// cartKeyFor resolves the storage key for the request identity: user id for
// signed-in callers, guest id otherwise.
func cartKeyFor(id identity.Identity) (cart.Key, bool) {
	raw, ok := id.CartKey()
	if !ok {
		return cart.Key{}, false
	}
	if id.IsAuthenticated() {
		return cart.UserKey(raw), true
	}
	return cart.GuestKey(raw), true
}

// HandleGetCart serves the caller's current cart. Callers with no cart yet
// get an empty one; no row is created by reading.
func HandleGetCart(svc *cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		key, ok := cartKeyFor(id)
		if !ok {
			http.Error(w, "no cart identity", http.StatusUnauthorized)
			return
		}

		c, err := svc.Get(r.Context(), key)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartView(c))
	}
}

type upsertLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// HandleUpsertLine applies a signed quantity delta to one line of the
// caller's cart and returns the updated cart.
func HandleUpsertLine(svc *cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		key, ok := cartKeyFor(id)
		if !ok {
			http.Error(w, "no cart identity", http.StatusUnauthorized)
			return
		}

		var req upsertLineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.ProductID == "" {
			http.Error(w, "productId is required", http.StatusBadRequest)
			return
		}
		if req.Quantity == 0 {
			http.Error(w, "quantity must be a non-zero delta", http.StatusBadRequest)
			return
		}

		c, err := svc.UpsertLine(r.Context(), key, req.ProductID, req.Quantity)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartView(c))
	}
}

// HandleRemoveLine drops one line from the caller's cart regardless of its
// quantity. Removing an absent line succeeds.
func HandleRemoveLine(svc *cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		key, ok := cartKeyFor(id)
		if !ok {
			http.Error(w, "no cart identity", http.StatusUnauthorized)
			return
		}

		productID := chi.URLParam(r, "productID")
		if productID == "" {
			http.Error(w, "productID is required", http.StatusBadRequest)
			return
		}

		c, err := svc.RemoveLine(r.Context(), key, productID)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newCartView(c))
	}
}

// HandleGetProduct serves one catalog entry.
func HandleGetProduct(lookup catalog.Lookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productID")

		product, err := lookup.Product(r.Context(), productID)
		if err != nil {
			http.Error(w, "catalog lookup failed", http.StatusInternalServerError)
			return
		}
		if product == nil {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, product)
	}
}
