package cart

import "github.com/quayside/storefront/internal/db/models"

// applyDelta returns lines with delta applied to the product's quantity.
// A resulting quantity at or below zero removes the line, so carts never
// hold zero-quantity entries. The snapshot is attached only when the line
// is first created; an existing line keeps its add-time price.
func applyDelta(lines models.CartLines, productID string, delta int, snapshot *int64) models.CartLines {
	out := lines.Clone()

	current, exists := out[productID]
	quantity := current.Quantity + delta
	if quantity <= 0 {
		delete(out, productID)
		return out
	}

	line := models.CartLine{ProductID: productID, Quantity: quantity}
	if exists {
		line.PriceSnapshot = current.PriceSnapshot
	} else {
		line.PriceSnapshot = snapshot
	}
	out[productID] = line
	return out
}

// mergeLines folds guest lines into user lines: quantities for the same
// product are summed, never replaced, because both carts wanted those units.
// On a snapshot collision the user cart's add-time price wins; the guest
// snapshot is adopted only where the user line has none.
func mergeLines(user, guest models.CartLines) models.CartLines {
	out := user.Clone()

	for productID, guestLine := range guest {
		if guestLine.Quantity <= 0 {
			continue
		}
		userLine, exists := out[productID]
		if !exists {
			out[productID] = guestLine
			continue
		}
		userLine.Quantity += guestLine.Quantity
		if userLine.PriceSnapshot == nil {
			userLine.PriceSnapshot = guestLine.PriceSnapshot
		}
		out[productID] = userLine
	}
	return out
}
