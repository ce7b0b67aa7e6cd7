package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string.
//
// Used for event identifiers on the notification channel and anywhere a
// sortable opaque id is needed. Works identically on PostgreSQL and SQLite
// (no gen_random_uuid() dependency).
//
// Panics only on entropy source exhaustion, at which point nothing else in
// the process can generate identifiers either.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
