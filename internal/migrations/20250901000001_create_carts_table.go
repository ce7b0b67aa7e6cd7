package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/quayside/storefront/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20250901000001, down_20250901000001)
}

// up_20250901000001 creates the carts table with indexes for merge lookups
// and retention housekeeping
func up_20250901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating carts table...")
	_, err := db.NewCreateTable().
		Model((*models.Cart)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create carts table: %w", err)
	}

	// Retention scans filter on status + kind + expiry.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_carts_status_expires ON carts(status, kind, expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create carts expiry index: %w", err)
	}

	// Tombstone purge filters on merged_at.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_carts_merged_at ON carts(merged_at)`)
	if err != nil {
		return fmt.Errorf("failed to create carts merged_at index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

func down_20250901000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping carts table...")
	_, err := db.NewDropTable().
		Model((*models.Cart)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop carts table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
