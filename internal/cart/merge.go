package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/quayside/storefront/internal/db/models"
	"github.com/quayside/storefront/internal/repository"
)

// MergeResult reports what a sign-in merge did.
type MergeResult struct {
	// UserCart is the account cart after the merge.
	UserCart *models.Cart

	// AlreadyMerged is set when the guest cart was found tombstoned:
	// a retried sign-in, double-submit, or duplicate trigger observed
	// an earlier merge and did nothing.
	AlreadyMerged bool

	// GuestLines counts the lines folded in by this call.
	GuestLines int
}

// MergeOnSignIn atomically combines the guest cart into the user's account
// cart and retires the guest identity. It runs once per sign-in, before the
// new session is considered established, and is safe to invoke again with
// the same pair: the tombstone left behind makes the second call a no-op.
//
// All reads and writes happen inside one transaction, so concurrent readers
// observe either the fully-pre-merge or fully-post-merge world. A guest
// write racing the merge is handled by the same version protocol UpsertLine
// uses: it either commits before the merge's snapshot (and is included) or
// bumps the guest row's version, failing the merge's conditional write; the
// merge then retries and includes it. Nothing is lost between snapshot and
// tombstone.
//
// On any failure the transaction rolls back and both carts stay exactly in
// their pre-merge state; the returned error is the retryable storage class.
func (s *Service) MergeOnSignIn(ctx context.Context, guestID, userID string) (*MergeResult, error) {
	if guestID == "" || userID == "" {
		return nil, fmt.Errorf("%w: merge requires both guest and user ids", ErrStorageUnavailable)
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, storageErr("merge cancelled", err)
		}

		result, err := s.tryMerge(ctx, guestID, userID)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) || errors.Is(err, repository.ErrCartExists) {
			continue
		}
		return nil, storageErr("merge carts", err)
	}

	return nil, fmt.Errorf("%w: merge conflict budget exceeded for guest %s", ErrStorageUnavailable, guestID)
}

// tryMerge is a single transactional merge attempt.
func (s *Service) tryMerge(ctx context.Context, guestID, userID string) (*MergeResult, error) {
	result := &MergeResult{}
	now := s.now()

	err := s.repo.InTx(ctx, func(tx repository.CartRepository) error {
		guest, err := tx.Get(ctx, guestID)
		if err != nil {
			return err
		}

		// Idempotence: an absent or tombstoned guest cart means there is
		// nothing to move. The user cart is returned as-is.
		if guest == nil || guest.IsTombstone() {
			result.AlreadyMerged = guest != nil
			user, err := tx.Get(ctx, userID)
			if err != nil {
				return err
			}
			if user == nil || user.IsTombstone() {
				user = models.NewCart(userID, models.CartKindUser, now, s.guestTTL)
			}
			result.UserCart = user
			return nil
		}

		user, err := tx.Get(ctx, userID)
		if err != nil {
			return err
		}

		if user == nil {
			user = models.NewCart(userID, models.CartKindUser, now, s.guestTTL)
			user.Lines = mergeLines(nil, guest.Lines)
			if err := tx.Insert(ctx, user); err != nil {
				return err
			}
		} else {
			user.Lines = mergeLines(user.Lines, guest.Lines)
			user.Touch(now, s.guestTTL)
			if err := tx.Update(ctx, user); err != nil {
				return err
			}
		}

		// Tombstone, not delete: the row is the merge marker retried
		// sign-ins detect, and it keeps its lines for inspection until
		// the purge job claims it.
		guest.Status = models.CartStatusMerged
		guest.MergedInto = &userID
		guest.MergedAt = &now
		guest.Touch(now, s.guestTTL)
		if err := tx.Update(ctx, guest); err != nil {
			return err
		}

		result.UserCart = user
		result.GuestLines = len(guest.Lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
