// Package catalog serves product reads through an optional cache that the
// order workflow keeps fresh.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
)

// DefaultTTL bounds how long a cached product may be served.
const DefaultTTL = time.Minute

// Cache is the storage used for product entries.
type Cache interface {
	Key(kind, id string) string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var (
	_ product.Catalog     = (*Cached)(nil)
	_ order.StockObserver = (*Cached)(nil)
)

// Cached decorates a product.Catalog with a read-through cache for single
// product lookups. Listings always hit the underlying catalog.
//
// Cache failures never fail a read; they are logged and the underlying
// catalog is used.
type Cached struct {
	next  product.Catalog
	cache Cache
	ttl   time.Duration
}

// NewCached returns a Cached catalog. A non-positive ttl uses DefaultTTL.
func NewCached(next product.Catalog, cache Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cached{next: next, cache: cache, ttl: ttl}
}

func (c *Cached) key(id string) string { return c.cache.Key("product", id) }

// GetByID returns the cached product or loads and caches it.
func (c *Cached) GetByID(ctx context.Context, id string) (*product.Product, error) {
	lg := zctx.From(ctx)
	key := c.key(id)

	data, found, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		lg.Warn("Reading product cache", zap.String("product_id", id), zap.Error(err))
	case found:
		var p product.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		lg.Warn("Decoding cached product", zap.String("product_id", id), zap.Error(err))
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			lg.Warn("Writing product cache", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

// List delegates to the underlying catalog.
func (c *Cached) List(ctx context.Context, page product.Page) ([]product.Product, error) {
	return c.next.List(ctx, page)
}

// StockChanged drops cached entries of products whose stock moved.
func (c *Cached) StockChanged(ctx context.Context, productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = c.key(id)
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		zctx.From(ctx).Warn("Invalidating product cache", zap.Strings("product_ids", productIDs), zap.Error(err))
	}
}
