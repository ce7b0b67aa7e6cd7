package cart

import "errors"

var (
	// ErrStorageUnavailable is the retryable failure class: the durable
	// store could not be reached, or the optimistic retry budget ran out.
	// Callers retry with bounded backoff; the attempted mutation has not
	// been applied, in whole or in part.
	ErrStorageUnavailable = errors.New("cart storage unavailable")

	// ErrUnknownProduct is returned when a line references a product the
	// catalog does not know.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrCartRetired is returned for writes against a merged guest cart.
	// The client's guest id is inert; it should resubmit the write under
	// its authenticated identity.
	ErrCartRetired = errors.New("cart retired by merge")
)
