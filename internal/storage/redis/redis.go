// Package redis implements a byte cache on top of go-redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values under namespaced keys.
type Cache struct {
	client    redis.UniversalClient
	namespace string
}

// New connects to addr. Keys are prefixed with namespace.
func New(addr, namespace string) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr}), namespace)
}

// NewFromClient wraps an existing client.
func NewFromClient(client redis.UniversalClient, namespace string) *Cache {
	return &Cache{client: client, namespace: namespace}
}

// Key builds the storage key for kind and id.
func (c *Cache) Key(kind, id string) string {
	if c.namespace == "" {
		return kind + ":" + id
	}
	return c.namespace + ":" + kind + ":" + id
}

// Get returns the value stored at key. A missing key is reported with
// found == false and a nil error.
func (c *Cache) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	value, err = c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %s", key)
	}
	return value, true, nil
}

// Set stores value at key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "del")
	}
	return nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
