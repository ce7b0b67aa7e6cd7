package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// GuestCookieName is the long-lived cookie carrying the guest id.
	GuestCookieName = "storefront.guest"

	// guestIDBytes is the entropy of a guest id. 16 random bytes keep the
	// cross-browser collision probability at the 2^-128 level.
	guestIDBytes = 16
)

// EnsureGuestID returns a stable guest identifier for an anonymous browser
// context. When existing is a well-formed guest id it is returned unchanged,
// so repeated calls across a session never reissue. Otherwise a fresh
// cryptographically random id is generated; issued reports whether the
// caller must persist a new cookie.
func EnsureGuestID(existing string) (id string, issued bool, err error) {
	if ValidGuestID(existing) {
		return existing, false, nil
	}

	buf := make([]byte, guestIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", false, fmt.Errorf("generate guest id: %w", err)
	}
	return hex.EncodeToString(buf), true, nil
}

// ValidGuestID reports whether s has the shape of an issued guest id
// (lowercase hex of the full entropy width). Anything else, including ids
// a client fabricated in another alphabet, is replaced rather than trusted.
func ValidGuestID(s string) bool {
	if len(s) != guestIDBytes*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
