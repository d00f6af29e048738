package redis

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cache_lookups_total",
	Help: "Read-through cache lookups partitioned by cache, tier and result",
}, []string{"cache", "tier", "result"})

// TieredCache is a read-through cache with a bounded in-process LRU in front
// of a Redis ViewCache. A nil Redis client disables the second tier.
type TieredCache[T any] struct {
	name   string
	local  *expirable.LRU[string, T]
	remote *ViewCache[T]
}

type TieredOptions struct {
	Size     int
	LocalTTL time.Duration
	RedisTTL time.Duration
}

func NewTieredCache[T any](name string, client *goredis.Client, opts TieredOptions) *TieredCache[T] {
	if opts.Size <= 0 {
		opts.Size = 1000
	}
	c := &TieredCache[T]{
		name:  name,
		local: expirable.NewLRU[string, T](opts.Size, nil, opts.LocalTTL),
	}
	if client != nil {
		c.remote = NewViewCache[T](client, opts.RedisTTL)
	}
	return c
}

func (c *TieredCache[T]) key(k string) string { return c.name + ":view:" + k }

func (c *TieredCache[T]) Get(ctx context.Context, k string) (*T, bool) {
	key := c.key(k)
	if v, ok := c.local.Get(key); ok {
		cacheLookups.WithLabelValues(c.name, "local", "hit").Inc()
		return &v, true
	}
	cacheLookups.WithLabelValues(c.name, "local", "miss").Inc()
	if c.remote == nil {
		return nil, false
	}
	v, ok := c.remote.Get(ctx, key)
	if !ok {
		cacheLookups.WithLabelValues(c.name, "redis", "miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues(c.name, "redis", "hit").Inc()
	c.local.Add(key, *v)
	return v, true
}

func (c *TieredCache[T]) Set(ctx context.Context, k string, v *T) {
	if v == nil {
		return
	}
	key := c.key(k)
	c.local.Add(key, *v)
	if c.remote != nil {
		c.remote.Set(ctx, key, v)
	}
}

func (c *TieredCache[T]) Delete(ctx context.Context, keys ...string) {
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		key := c.key(k)
		c.local.Remove(key)
		full = append(full, key)
	}
	if c.remote != nil {
		c.remote.Delete(ctx, full...)
	}
}

// Purge drops every entry owned by this cache in both tiers.
func (c *TieredCache[T]) Purge(ctx context.Context) {
	prefix := c.key("")
	for _, k := range c.local.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.local.Remove(k)
		}
	}
	if c.remote != nil {
		c.remote.DeletePrefix(ctx, prefix)
	}
}

// GetOrLoad returns the cached value or calls load, caching its result.
// Errors from load are returned as is and nothing is cached.
func (c *TieredCache[T]) GetOrLoad(ctx context.Context, k string, load func(context.Context) (*T, error)) (*T, error) {
	if v, ok := c.Get(ctx, k); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, k, v)
	return v, nil
}

func (c *TieredCache[T]) Len() int { return c.local.Len() }
