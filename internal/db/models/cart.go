package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// CartKind records which identity namespace a cart key belongs to. The store
// itself is agnostic; the kind exists so retention housekeeping can tell
// purgeable guest carts apart from account carts.
type CartKind string

const (
	CartKindGuest CartKind = "guest"
	CartKindUser  CartKind = "user"
)

// CartStatus tracks the guest-cart lifecycle. There is no transition from
// merged back to active.
type CartStatus string

const (
	CartStatusActive CartStatus = "active"
	// CartStatusMerged marks a tombstoned guest cart. The row is retained
	// (lines included) so a retried merge can observe it and no-op; the
	// purge job removes it after the retention window.
	CartStatusMerged CartStatus = "merged"
)

// CartLine is a single product entry. PriceSnapshot is captured at add time
// in minor currency units and never recomputed here; pricing is owned by the
// catalog side.
type CartLine struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	PriceSnapshot *int64 `json:"price_snapshot,omitempty"`
}

// CartLines maps product id to its line. At most one line per product.
type CartLines map[string]CartLine

// Scan implements sql.Scanner for reading from database
func (l *CartLines) Scan(value any) error {
	if value == nil {
		*l = make(CartLines)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan CartLines: expected []byte or string, got %T", value)
	}
	if len(data) == 0 {
		*l = make(CartLines)
		return nil
	}
	return json.Unmarshal(data, l)
}

// Value implements driver.Valuer for writing to database
func (l CartLines) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Clone returns a deep copy safe to mutate independently.
func (l CartLines) Clone() CartLines {
	out := make(CartLines, len(l))
	for id, line := range l {
		if line.PriceSnapshot != nil {
			snap := *line.PriceSnapshot
			line.PriceSnapshot = &snap
		}
		out[id] = line
	}
	return out
}

// Cart is the durable cart aggregate, keyed by exactly one of a guest id or a
// user id. Version implements the optimistic per-key write protocol: every
// update is conditioned on the version it read.
type Cart struct {
	bun.BaseModel `bun:"table:carts,alias:c"`

	Key     string     `bun:"cart_key,pk"`
	Kind    CartKind   `bun:"kind,notnull"`
	Status  CartStatus `bun:"status,notnull,default:'active'"`
	Lines   CartLines  `bun:"lines,type:jsonb,notnull,default:'{}'"`
	Version int64      `bun:"version,notnull,default:1"`

	// Set when the cart is tombstoned by a merge.
	MergedInto *string    `bun:"merged_into"`
	MergedAt   *time.Time `bun:"merged_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	// ExpiresAt drives guest-cart retention, refreshed on each mutation.
	// Ignored for user carts.
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

// NewCart builds an active cart with no lines.
func NewCart(key string, kind CartKind, now time.Time, ttl time.Duration) *Cart {
	return &Cart{
		Key:       key,
		Kind:      kind,
		Status:    CartStatusActive,
		Lines:     make(CartLines),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsTombstone reports whether the cart has been merged away.
func (c *Cart) IsTombstone() bool {
	return c != nil && c.Status == CartStatusMerged
}

// Quantity returns the quantity for a product, zero when absent.
func (c *Cart) Quantity(productID string) int {
	if c == nil || c.Lines == nil {
		return 0
	}
	return c.Lines[productID].Quantity
}

// Touch refreshes the mutation and retention timestamps.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(ttl)
}
