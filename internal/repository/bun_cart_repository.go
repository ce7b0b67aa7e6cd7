package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/quayside/storefront/internal/db/models"
)

// BunCartRepository persists carts using Bun ORM against PostgreSQL or SQLite.
type BunCartRepository struct {
	db   bun.IDB
	conn *bun.DB // nil when this instance is bound to a transaction
}

// NewBunCartRepository constructs a repository backed by Bun.
func NewBunCartRepository(db *bun.DB) *BunCartRepository {
	return &BunCartRepository{db: db, conn: db}
}

// Get fetches a cart row by its key. Returns (nil, nil) when absent.
func (r *BunCartRepository) Get(ctx context.Context, key string) (*models.Cart, error) {
	cart := new(models.Cart)
	err := r.db.NewSelect().Model(cart).Where("cart_key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query cart: %w", err)
	}
	return cart, nil
}

// Insert creates a new cart row.
func (r *BunCartRepository) Insert(ctx context.Context, cart *models.Cart) error {
	_, err := r.db.NewInsert().Model(cart).Exec(ctx)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("cart %q: %w", cart.Key, ErrCartExists)
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

// Update persists mutated cart content under the optimistic version check.
// The caller leaves cart.Version at the value it read; on success the field
// reflects the stored, incremented version.
func (r *BunCartRepository) Update(ctx context.Context, cart *models.Cart) error {
	prev := cart.Version
	cart.Version = prev + 1

	result, err := r.db.NewUpdate().
		Model(cart).
		Column("kind", "status", "lines", "version", "merged_into", "merged_at", "updated_at", "expires_at").
		WherePK().
		Where("version = ?", prev).
		Exec(ctx)
	if err != nil {
		cart.Version = prev
		return fmt.Errorf("update cart: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		cart.Version = prev
		return fmt.Errorf("cart %q: %w", cart.Key, ErrVersionConflict)
	}

	return nil
}

// Delete removes a cart row. Absent keys are a no-op.
func (r *BunCartRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.NewDelete().
		Model((*models.Cart)(nil)).
		Where("cart_key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// PurgeExpired removes stale guest carts and old merge tombstones.
func (r *BunCartRepository) PurgeExpired(ctx context.Context, now, tombstoneBefore time.Time) (int64, error) {
	result, err := r.db.NewDelete().
		Model((*models.Cart)(nil)).
		Where("(status = ? AND kind = ? AND expires_at < ?) OR (status = ? AND merged_at < ?)",
			models.CartStatusActive, models.CartKindGuest, now,
			models.CartStatusMerged, tombstoneBefore).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge carts: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

// InTx runs fn against a repository bound to a single transaction. Calling it
// on an already transaction-bound repository reuses that transaction.
func (r *BunCartRepository) InTx(ctx context.Context, fn func(CartRepository) error) error {
	if r.conn == nil {
		return fn(r)
	}
	return r.conn.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&BunCartRepository{db: tx})
	})
}

// isDuplicateKeyError detects unique violations across both dialects.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // PostgreSQL
		strings.Contains(msg, "UNIQUE constraint failed") // SQLite
}
