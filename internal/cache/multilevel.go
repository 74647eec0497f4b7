package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultL1TTL bounds how long one instance can serve a value another
	// instance has already invalidated in the shared tier.
	DefaultL1TTL = 30 * time.Second

	// DefaultTombstoneTTL must outlive the longest TTL written to the
	// shared tier.
	DefaultTombstoneTTL = 15 * time.Minute
)

// MultiLevelCache fronts an optional shared cache with a process local one.
// Shared tier failures are counted and swallowed so callers fall back to the
// source of truth.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	l1TTL   time.Duration

	shared       []string
	tombstoneTTL time.Duration

	mu         sync.Mutex
	tombstones map[string]time.Time
	now        func() time.Time
}

type MultiLevelOption func(*MultiLevelCache)

func WithL1TTL(ttl time.Duration) MultiLevelOption {
	return func(c *MultiLevelCache) {
		if ttl > 0 {
			c.l1TTL = ttl
		}
	}
}

// WithSharedKeys keeps keys starting with any of prefixes out of the local
// tier while a shared tier is configured, so every instance reads the same
// copy and an invalidation on one instance is seen by all of them.
func WithSharedKeys(prefixes ...string) MultiLevelOption {
	return func(c *MultiLevelCache) {
		c.shared = append(c.shared, prefixes...)
	}
}

func WithTombstoneTTL(ttl time.Duration) MultiLevelOption {
	return func(c *MultiLevelCache) {
		if ttl > 0 {
			c.tombstoneTTL = ttl
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) MultiLevelOption {
	return func(c *MultiLevelCache) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// NewMultiLevelCache builds the cache. l2 may be nil, in which case only the
// local tier is used.
func NewMultiLevelCache(l1 *MemoryCache, l2 Cache, opts ...MultiLevelOption) *MultiLevelCache {
	if l1 == nil {
		l1 = NewMemoryCache(0)
	}
	c := &MultiLevelCache{
		l1:      l1,
		l2:      l2,
		breaker: NewCircuitBreaker(nil),
		metrics: NewCacheMetrics(),
		l1TTL:   DefaultL1TTL,

		tombstoneTTL: DefaultTombstoneTTL,
		tombstones:   make(map[string]time.Time),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MultiLevelCache) localTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}

// local reports whether key may be held in the process local tier.
func (c *MultiLevelCache) local(key string) bool {
	if c.l2 == nil {
		return true
	}
	for _, prefix := range c.shared {
		if strings.HasPrefix(key, prefix) {
			return false
		}
	}
	return true
}

// tombstoned reports whether a shared tier delete for key failed and has not
// been retried successfully yet.
func (c *MultiLevelCache) tombstoned(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt, ok := c.tombstones[key]
	if ok && c.now().After(expiresAt) {
		delete(c.tombstones, key)
		return false
	}
	return ok
}

func (c *MultiLevelCache) bury(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiresAt := c.now().Add(c.tombstoneTTL)
	for _, k := range keys {
		c.tombstones[k] = expiresAt
	}
}

func (c *MultiLevelCache) unbury(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.tombstones, k)
	}
}

func (c *MultiLevelCache) Tombstones() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tombstones)
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.local(key) {
		if err := c.l1.Set(ctx, key, value, c.localTTL(ttl)); err != nil {
			c.metrics.RecordError()
			return err
		}
	}

	if c.l2 != nil {
		if err := c.breaker.Execute(func() error { return c.l2.Set(ctx, key, value, ttl) }); err != nil {
			c.metrics.RecordError()
			return nil
		}
		// A fresh value overwrote whatever a failed delete left behind.
		c.unbury(key)
	}
	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.local(key) {
		if err := c.l1.Get(ctx, key, dest); err == nil {
			c.metrics.RecordHit(TierL1)
			return nil
		}
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	// The shared tier may still hold a value that was invalidated while it
	// was unreachable. Retry the delete and never read it.
	if c.tombstoned(key) {
		if err := c.breaker.Execute(func() error { return c.l2.Delete(ctx, key) }); err != nil {
			c.metrics.RecordError()
		} else {
			c.unbury(key)
		}
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	err := c.breaker.Execute(func() error { return c.l2.Get(ctx, key, dest) })
	switch {
	case err == nil:
		c.metrics.RecordHit(TierL2)
		if c.local(key) {
			_ = c.l1.Set(ctx, key, dest, c.l1TTL)
		}
		return nil
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordMiss()
	default:
		c.metrics.RecordError()
	}
	return ErrCacheMiss
}

// Delete drops keys from both tiers. When the shared tier cannot be reached
// the keys are tombstoned locally until a later delete or write succeeds.
func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	c.metrics.RecordInvalidation()

	if c.l2 != nil {
		if err := c.breaker.Execute(func() error { return c.l2.Delete(ctx, keys...) }); err != nil {
			c.metrics.RecordError()
			c.bury(keys...)
			return err
		}
		c.unbury(keys...)
	}
	return nil
}

func (c *MultiLevelCache) Metrics() *CacheMetrics {
	return c.metrics
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	snapshot := c.metrics.Snapshot()
	stats := map[string]interface{}{
		"l1":            c.l1.Stats(),
		"l1_hits":       snapshot.L1Hits,
		"l2_hits":       snapshot.L2Hits,
		"misses":        snapshot.Misses,
		"errors":        snapshot.Errors,
		"invalidations": snapshot.Invalidations,
		"hit_rate":      snapshot.HitRate(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["circuit_breaker"] = c.breaker.GetStats()
		stats["tombstones"] = c.Tombstones()
	}

	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	if c.breaker.GetState() == CircuitBreakerOpen {
		return ErrCacheDown
	}
	return c.l2.Health(ctx)
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
