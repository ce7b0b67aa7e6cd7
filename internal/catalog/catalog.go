// Package catalog is the boundary to the external product catalog. This core
// only asks whether a product reference exists and what its current price is
// at add-time; it owns no product data.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Product is the slice of catalog data cart operations consume. Price is in
// minor currency units and is only used for the add-time snapshot.
type Product struct {
	ID    string `json:"id"`
	Price int64  `json:"price"`
}

// Lookup resolves product references. Implementations return (nil, nil) for
// unknown products; errors are reserved for the catalog being unreachable.
type Lookup interface {
	Product(ctx context.Context, productID string) (*Product, error)
}

// Static serves lookups from a fixed product set, loaded from a JSON file or
// assembled in tests.
type Static struct {
	products map[string]Product
}

// NewStatic builds a static catalog from a product list.
func NewStatic(products []Product) *Static {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &Static{products: m}
}

// LoadStatic reads a JSON product array from path.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return NewStatic(products), nil
}

func (s *Static) Product(_ context.Context, productID string) (*Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Permissive accepts every product reference with no price data. Development
// fallback for deployments without a catalog configured.
type Permissive struct{}

func (Permissive) Product(_ context.Context, productID string) (*Product, error) {
	return &Product{ID: productID}, nil
}

// Cached fronts a Lookup with an in-process LRU. Only positive results are
// cached: a product missing right now may be published a moment later, and
// caching absence would wedge cart adds until eviction.
type Cached struct {
	inner Lookup
	cache *lru.Cache[string, Product]
}

// NewCached wraps inner with an LRU of the given size.
func NewCached(inner Lookup, size int) (*Cached, error) {
	cache, err := lru.New[string, Product](size)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Product(ctx context.Context, productID string) (*Product, error) {
	if p, ok := c.cache.Get(productID); ok {
		return &p, nil
	}
	p, err := c.inner.Product(ctx, productID)
	if err != nil || p == nil {
		return p, err
	}
	c.cache.Add(productID, *p)
	return p, nil
}
