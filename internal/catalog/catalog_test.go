package catalog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-orders/internal/catalog"
	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
	"github.com/xenking/shop-orders/internal/storage/memory"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Key(kind, id string) string { return kind + ":" + id }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type countingCatalog struct {
	product.Catalog
	gets int
}

func (c *countingCatalog) GetByID(ctx context.Context, id string) (*product.Product, error) {
	c.gets++
	return c.Catalog.GetByID(ctx, id)
}

func newStore() *memory.Store {
	s := memory.New()
	s.PutUser(user.User{ID: "u1", Email: "u1@example.com", Role: user.RoleUser})
	s.PutProduct(
		product.Product{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("12.50"), Stock: 3},
		product.Product{ID: "p2", Name: "Cup", Price: decimal.RequireFromString("7.00"), Stock: 1},
	)
	return s
}

func TestCached_GetByID(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	next := &countingCatalog{Catalog: store.Catalog()}
	cache := newMapCache()
	c := catalog.NewCached(next, cache, 0)

	p, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, catalog.DefaultTTL, cache.ttls["product:p1"])

	p, err = c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(p.Price))
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 1, next.gets, "second read must be served from cache")
}

func TestCached_GetByIDNotFound(t *testing.T) {
	cache := newMapCache()
	c := catalog.NewCached(newStore().Catalog(), cache, time.Second)

	_, err := c.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, cache.has("product:missing"))
}

func TestCached_CacheFailureFallsBack(t *testing.T) {
	cache := newMapCache()
	cache.getErr = errors.New("connection refused")
	next := &countingCatalog{Catalog: newStore().Catalog()}
	c := catalog.NewCached(next, cache, time.Second)

	p, err := c.GetByID(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "Cup", p.Name)
	assert.Equal(t, 1, next.gets)
}

func TestCached_List(t *testing.T) {
	c := catalog.NewCached(newStore().Catalog(), newMapCache(), time.Second)

	items, err := c.List(context.Background(), product.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCached_InvalidatedByOrderWorkflow(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cache := newMapCache()
	c := catalog.NewCached(store.Catalog(), cache, time.Minute)

	_, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)
	_, err = c.GetByID(ctx, "p2")
	require.NoError(t, err)

	svc, err := order.NewService(store, order.DefaultConfig(), order.WithStockObserver(c))
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, order.PlaceOrderRequest{UserID: "u1", ProductIDs: []string{"p1"}})
	require.NoError(t, err)

	assert.False(t, cache.has("product:p1"))
	assert.True(t, cache.has("product:p2"))

	p, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
}
