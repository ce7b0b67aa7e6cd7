package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/quayside/storefront/internal/db/bunx"
	"github.com/quayside/storefront/internal/db/models"
	"github.com/quayside/storefront/internal/migrations"
)

// setupTestDB creates a migrated in-memory SQLite database.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { bunx.Close(db) })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func newCart(key string, kind models.CartKind) *models.Cart {
	now := time.Now().UTC()
	return models.NewCart(key, kind, now, 7*24*time.Hour)
}

func TestBunCartRepository_InsertAndGet(t *testing.T) {
	repo := NewBunCartRepository(setupTestDB(t))
	ctx := context.Background()

	t.Run("get absent key", func(t *testing.T) {
		cart, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, cart)
	})

	t.Run("insert and read back", func(t *testing.T) {
		cart := newCart("guest-1", models.CartKindGuest)
		cart.Lines["p-1"] = models.CartLine{ProductID: "p-1", Quantity: 2}

		require.NoError(t, repo.Insert(ctx, cart))

		got, err := repo.Get(ctx, "guest-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.CartStatusActive, got.Status)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, 2, got.Quantity("p-1"))
	})

	t.Run("duplicate insert", func(t *testing.T) {
		err := repo.Insert(ctx, newCart("guest-1", models.CartKindGuest))
		assert.ErrorIs(t, err, ErrCartExists)
	})
}

func TestBunCartRepository_UpdateCAS(t *testing.T) {
	repo := NewBunCartRepository(setupTestDB(t))
	ctx := context.Background()

	cart := newCart("user-1", models.CartKindUser)
	require.NoError(t, repo.Insert(ctx, cart))

	t.Run("update at read version succeeds and bumps", func(t *testing.T) {
		cart.Lines["p-1"] = models.CartLine{ProductID: "p-1", Quantity: 1}
		require.NoError(t, repo.Update(ctx, cart))
		assert.Equal(t, int64(2), cart.Version)

		got, err := repo.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, 1, got.Quantity("p-1"))
	})

	t.Run("stale version conflicts and leaves row untouched", func(t *testing.T) {
		stale, err := repo.Get(ctx, "user-1")
		require.NoError(t, err)

		// Another writer moves the row.
		current, err := repo.Get(ctx, "user-1")
		require.NoError(t, err)
		current.Lines["p-2"] = models.CartLine{ProductID: "p-2", Quantity: 5}
		require.NoError(t, repo.Update(ctx, current))

		stale.Lines["p-1"] = models.CartLine{ProductID: "p-1", Quantity: 99}
		err = repo.Update(ctx, stale)
		assert.ErrorIs(t, err, ErrVersionConflict)

		got, err := repo.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Quantity("p-1"), "conflicting write must not apply")
		assert.Equal(t, 5, got.Quantity("p-2"))
	})
}

func TestBunCartRepository_Delete(t *testing.T) {
	repo := NewBunCartRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newCart("guest-2", models.CartKindGuest)))
	require.NoError(t, repo.Delete(ctx, "guest-2"))

	cart, err := repo.Get(ctx, "guest-2")
	require.NoError(t, err)
	assert.Nil(t, cart)

	// Deleting again is a no-op.
	require.NoError(t, repo.Delete(ctx, "guest-2"))
}

func TestBunCartRepository_InTxRollsBack(t *testing.T) {
	repo := NewBunCartRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newCart("user-2", models.CartKindUser)))

	boom := assert.AnError
	err := repo.InTx(ctx, func(tx CartRepository) error {
		cart, err := tx.Get(ctx, "user-2")
		require.NoError(t, err)
		cart.Lines["p-1"] = models.CartLine{ProductID: "p-1", Quantity: 3}
		require.NoError(t, tx.Update(ctx, cart))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity("p-1"), "rolled-back write must not be visible")
	assert.Equal(t, int64(1), got.Version)
}

func TestBunCartRepository_PurgeExpired(t *testing.T) {
	repo := NewBunCartRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	// Stale guest cart: expired two days ago.
	stale := models.NewCart("guest-stale", models.CartKindGuest, now.Add(-9*24*time.Hour), 7*24*time.Hour)
	require.NoError(t, repo.Insert(ctx, stale))

	// Fresh guest cart.
	require.NoError(t, repo.Insert(ctx, models.NewCart("guest-fresh", models.CartKindGuest, now, 7*24*time.Hour)))

	// Old tombstone.
	tomb := models.NewCart("guest-merged", models.CartKindGuest, now, 7*24*time.Hour)
	mergedAt := now.Add(-100 * time.Hour)
	userKey := "user-9"
	tomb.Status = models.CartStatusMerged
	tomb.MergedAt = &mergedAt
	tomb.MergedInto = &userKey
	require.NoError(t, repo.Insert(ctx, tomb))

	// User carts never expire.
	old := models.NewCart("user-old", models.CartKindUser, now.Add(-90*24*time.Hour), 7*24*time.Hour)
	require.NoError(t, repo.Insert(ctx, old))

	removed, err := repo.PurgeExpired(ctx, now, now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	for key, want := range map[string]bool{
		"guest-stale":  false,
		"guest-fresh":  true,
		"guest-merged": false,
		"user-old":     true,
	} {
		cart, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, cart != nil, "key %s", key)
	}
}
