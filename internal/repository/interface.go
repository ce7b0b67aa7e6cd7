package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quayside/storefront/internal/db/models"
)

var (
	// ErrCartExists is returned by Insert when the key already has a row.
	ErrCartExists = errors.New("cart already exists")

	// ErrVersionConflict is returned by Update when the row changed since
	// it was read. Callers re-read and retry within a bounded budget.
	ErrVersionConflict = errors.New("cart version conflict")
)

// CartRepository persists cart aggregates keyed by guest or user id. The
// repository is agnostic to which; kind is just a column.
//
// Every write is all-or-nothing: Insert and Update are single statements,
// and multi-key operations (the merge) run inside InTx.
type CartRepository interface {
	// Get returns the cart row for a key, or (nil, nil) when absent.
	// Tombstoned rows are returned as-is; interpreting them is the
	// service layer's concern.
	Get(ctx context.Context, key string) (*models.Cart, error)

	// Insert creates a new cart row. ErrCartExists on a duplicate key.
	Insert(ctx context.Context, cart *models.Cart) error

	// Update writes the cart conditioned on the version it was read at,
	// bumping the version on success. ErrVersionConflict when the row
	// moved underneath the caller.
	Update(ctx context.Context, cart *models.Cart) error

	// Delete removes a cart row. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// PurgeExpired removes guest carts idle past their expiry and merge
	// tombstones older than tombstoneBefore. Returns rows removed.
	PurgeExpired(ctx context.Context, now, tombstoneBefore time.Time) (int64, error)

	// InTx runs fn against a repository bound to one database transaction.
	// Any error rolls the whole transaction back.
	InTx(ctx context.Context, fn func(CartRepository) error) error
}
