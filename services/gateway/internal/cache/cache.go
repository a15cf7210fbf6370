// Package cache stores upstream catalog pages as JSON, either in process
// or in Redis.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Cache is the read/write surface used by the catalog directory.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// Invalidate drops key; an empty key or "ALL" drops everything.
	Invalidate(ctx context.Context, key string) error
}

func isAll(key string) bool {
	return key == "" || strings.EqualFold(key, "ALL")
}

type cacheItem struct {
	val       []byte
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time
	sub   *nats.Subscription
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TTLCache{items: make(map[string]cacheItem), ttl: ttl, now: time.Now}
}

// SubscribeInvalidation drops keys named on subj. Every gateway replica
// subscribes so an admin invalidation reaches all of them.
func (c *TTLCache) SubscribeInvalidation(nc *nats.Conn, subj string, log *zap.Logger) error {
	if nc == nil || subj == "" {
		return nil
	}
	sub, err := nc.Subscribe(subj, func(m *nats.Msg) {
		_ = c.Invalidate(context.Background(), string(m.Data))
		if log != nil {
			log.Info("cache invalidated", zap.String("key", string(m.Data)))
		}
	})
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

func (c *TTLCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && c.now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(it.val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *TTLCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = cacheItem{val: b, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *TTLCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isAll(key) {
		c.items = make(map[string]cacheItem)
		return nil
	}
	delete(c.items, key)
	return nil
}

// Close stops the invalidation subscription.
func (c *TTLCache) Close() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe()
}
