package storage

import (
	"context"

	"alice/internal/cache"
)

// CachedKV is a read-through, write-through cache in front of another KV.
// Only present keys are cached, and never a SharedKey.
type CachedKV struct {
	next  KV
	cache cache.Cache[string]
}

var _ KV = (*CachedKV)(nil)

func NewCachedKV(next KV, c cache.Cache[string]) *CachedKV {
	return &CachedKV{next: next, cache: c}
}

func (c *CachedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if SharedKey(key) {
		return c.next.Get(ctx, key)
	}
	if v, ok := c.cache.Get(key); ok {
		return v, true, nil
	}
	v, ok, err := c.next.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	c.cache.Set(key, v)
	return v, true, nil
}

func (c *CachedKV) Set(ctx context.Context, key, value string) error {
	if err := c.next.Set(ctx, key, value); err != nil {
		c.cache.Delete(key)
		return err
	}
	if !SharedKey(key) {
		c.cache.Set(key, value)
	}
	return nil
}

func (c *CachedKV) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	var value string
	err := c.next.Update(ctx, key, func(old string, ok bool) (string, error) {
		v, err := fn(old, ok)
		value = v
		return v, err
	})
	if err != nil || SharedKey(key) {
		c.cache.Delete(key)
		return err
	}
	c.cache.Set(key, value)
	return nil
}

func (c *CachedKV) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return c.next.Delete(ctx, key)
}

func (c *CachedKV) Ping(ctx context.Context) error { return c.next.Ping(ctx) }
func (c *CachedKV) Close() error                   { return c.next.Close() }
