package cart

import (
	"context"
	"log"
	"time"

	"github.com/quayside/storefront/internal/repository"
)

// PurgeJob is the retention housekeeping loop: it removes merge tombstones
// past their retention window and guest carts idle past their TTL. Purging
// is not load-bearing for correctness; merges stay idempotent through the
// tombstone while it exists and simply find nothing to do after it is gone.
type PurgeJob struct {
	repo               repository.CartRepository
	interval           time.Duration
	tombstoneRetention time.Duration
}

// NewPurgeJob creates the housekeeping job.
func NewPurgeJob(repo repository.CartRepository, interval, tombstoneRetention time.Duration) *PurgeJob {
	if interval <= 0 {
		interval = time.Hour
	}
	if tombstoneRetention <= 0 {
		tombstoneRetention = 72 * time.Hour
	}
	return &PurgeJob{
		repo:               repo,
		interval:           interval,
		tombstoneRetention: tombstoneRetention,
	}
}

// Run blocks, purging on the configured interval until the context ends.
func (j *PurgeJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.PurgeOnce(ctx)
			if err != nil {
				log.Printf("cart purge failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("cart purge removed %d rows", removed)
			}
		}
	}
}

// PurgeOnce runs a single purge pass.
func (j *PurgeJob) PurgeOnce(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	return j.repo.PurgeExpired(ctx, now, now.Add(-j.tombstoneRetention))
}
