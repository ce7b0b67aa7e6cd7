// Package cart owns the durable cart aggregates and the sign-in merge. It is
// the only subsystem that writes cart state; identity resolution and route
// authorization stay upstream and pass resolved identities in explicitly.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quayside/storefront/internal/catalog"
	"github.com/quayside/storefront/internal/db/models"
	"github.com/quayside/storefront/internal/repository"
)

// maxWriteAttempts bounds the optimistic retry loop for a single logical
// write. Past the budget the caller sees the retryable failure class.
const maxWriteAttempts = 4

// DefaultGuestTTL is the inactivity window after which an unmerged guest
// cart becomes eligible for purging.
const DefaultGuestTTL = 7 * 24 * time.Hour

// Key addresses one cart: the identity's id plus which namespace it lives
// in. The store itself treats both kinds the same way.
type Key struct {
	ID   string
	Kind models.CartKind
}

// GuestKey addresses an anonymous cart.
func GuestKey(guestID string) Key {
	return Key{ID: guestID, Kind: models.CartKindGuest}
}

// UserKey addresses an account cart.
func UserKey(userID string) Key {
	return Key{ID: userID, Kind: models.CartKindUser}
}

// Service implements the cart store operations and the merge engine on top
// of the repository's optimistic per-key write protocol.
type Service struct {
	repo     repository.CartRepository
	catalog  catalog.Lookup
	guestTTL time.Duration
	now      func() time.Time
}

// NewService constructs the cart service.
func NewService(repo repository.CartRepository, cat catalog.Lookup) *Service {
	return &Service{
		repo:     repo,
		catalog:  cat,
		guestTTL: DefaultGuestTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithGuestTTL overrides the guest cart retention window.
func (s *Service) WithGuestTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.guestTTL = ttl
	}
	return s
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Get returns the cart under key. Missing and tombstoned carts read as an
// empty cart, so callers never special-case "no cart yet"; a storage error
// is surfaced rather than masked as empty, which would silently lose lines
// from the caller's perspective.
func (s *Service) Get(ctx context.Context, key Key) (*models.Cart, error) {
	cur, err := s.repo.Get(ctx, key.ID)
	if err != nil {
		return nil, storageErr("load cart", err)
	}
	if cur == nil || cur.IsTombstone() {
		return models.NewCart(key.ID, key.Kind, s.now(), s.guestTTL), nil
	}
	return cur, nil
}

// UpsertLine is the sole mutation primitive: it adds delta to the line's
// quantity, creating the line (with an add-time price snapshot) or removing
// it when the result drops to zero or below. Safe under concurrent callers
// on the same key; lost updates are prevented by the version check and a
// bounded retry.
func (s *Service) UpsertLine(ctx context.Context, key Key, productID string, delta int) (*models.Cart, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: empty product id", ErrUnknownProduct)
	}

	// Validate the reference and capture the price snapshot only for
	// additions; removing a line needs no catalog round-trip.
	var snapshot *int64
	if delta > 0 {
		product, err := s.catalog.Product(ctx, productID)
		if err != nil {
			return nil, storageErr("catalog lookup", err)
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
		}
		if product.Price > 0 {
			price := product.Price
			snapshot = &price
		}
	}

	return s.mutate(ctx, key, func(c *models.Cart) {
		c.Lines = applyDelta(c.Lines, productID, delta, snapshot)
	})
}

// RemoveLine drops a product from the cart regardless of quantity.
func (s *Service) RemoveLine(ctx context.Context, key Key, productID string) (*models.Cart, error) {
	return s.mutate(ctx, key, func(c *models.Cart) {
		lines := c.Lines.Clone()
		delete(lines, productID)
		c.Lines = lines
	})
}

// Delete removes the cart under key entirely. Absent keys are a no-op.
func (s *Service) Delete(ctx context.Context, key Key) error {
	if err := s.repo.Delete(ctx, key.ID); err != nil {
		return storageErr("delete cart", err)
	}
	return nil
}

// Inspect returns the raw stored row, tombstones included, or nil when
// absent. Administrative use only; regular reads go through Get.
func (s *Service) Inspect(ctx context.Context, key string) (*models.Cart, error) {
	cur, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, storageErr("load cart", err)
	}
	return cur, nil
}

// mutate runs one all-or-nothing cart mutation under the optimistic write
// protocol: read, apply, write conditioned on the version read, retry on
// conflict within the attempt budget.
func (s *Service) mutate(ctx context.Context, key Key, apply func(*models.Cart)) (*models.Cart, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, storageErr("cart write cancelled", err)
		}

		cur, err := s.repo.Get(ctx, key.ID)
		if err != nil {
			return nil, storageErr("load cart", err)
		}

		now := s.now()
		fresh := cur == nil
		if fresh {
			// Lazily created on first write.
			cur = models.NewCart(key.ID, key.Kind, now, s.guestTTL)
		} else if cur.IsTombstone() {
			return nil, fmt.Errorf("%w: %s", ErrCartRetired, key.ID)
		}

		apply(cur)
		cur.Touch(now, s.guestTTL)

		if fresh {
			if len(cur.Lines) == 0 {
				// Removal against an absent cart; nothing to persist.
				return cur, nil
			}
			err = s.repo.Insert(ctx, cur)
			if errors.Is(err, repository.ErrCartExists) {
				continue // another tab created it first, re-read
			}
		} else {
			err = s.repo.Update(ctx, cur)
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
		}
		if err != nil {
			return nil, storageErr("write cart", err)
		}
		return cur, nil
	}

	return nil, fmt.Errorf("%w: write conflict budget exceeded for %s", ErrStorageUnavailable, key.ID)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %s", ErrStorageUnavailable, op, err)
}
