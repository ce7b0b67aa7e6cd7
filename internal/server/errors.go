package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/quayside/storefront/internal/cart"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

// writeCartError maps the cart engine's sentinel errors onto HTTP statuses.
// Storage exhaustion is reported as retryable; the client state is unchanged
// and the same request can simply be sent again.
func writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrUnknownProduct):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "unknown product"})
	case errors.Is(err, cart.ErrCartRetired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cart has been merged"})
	case errors.Is(err, cart.ErrStorageUnavailable):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable, retry"})
	default:
		log.Printf("cart operation failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
