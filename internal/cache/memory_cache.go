package cache

import (
	"context"
	"sync"
	"time"
)

// defaultMemoryTTL bounds entries stored without an expiry
const defaultMemoryTTL = time.Hour

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry and a size cap.
// When full, the entry closest to expiry is evicted.
type MemoryCache struct {
	items    map[string]memoryItem
	maxItems int
	now      func() time.Time
	mu       sync.RWMutex
}

// NewMemoryCache creates an in-process cache holding at most maxItems entries
func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryCache{
		items:    make(map[string]memoryItem),
		maxItems: maxItems,
		now:      time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		if current, still := c.items[key]; still && !c.now().Before(current.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return item.data, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evictLocked()
	}
	c.items[key] = memoryItem{data: value, expiresAt: c.now().Add(expiration)}
	return nil
}

func (c *MemoryCache) evictLocked() {
	var victim string
	var soonest time.Time
	for k, item := range c.items {
		if victim == "" || item.expiresAt.Before(soonest) {
			victim, soonest = k, item.expiresAt
		}
	}
	if victim != "" {
		delete(c.items, victim)
	}
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	data, err := c.Get(ctx, key)
	return data != nil, err
}

// Len reports the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Health(context.Context) error { return nil }

// MultiLevelCache fronts a shared cache with an in-process L1
type MultiLevelCache struct {
	l1 *MemoryCache
	l2 Cache
}

// NewMultiLevelCache wraps l2 with an L1 of at most l1MaxItems entries
func NewMultiLevelCache(l2 Cache, l1MaxItems int) *MultiLevelCache {
	return &MultiLevelCache{l1: NewMemoryCache(l1MaxItems), l2: l2}
}

// Get checks L1, then L2, refilling L1 on an L2 hit
func (c *MultiLevelCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, _ := c.l1.Get(ctx, key); data != nil {
		return data, nil
	}
	data, err := c.l2.Get(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	_ = c.l1.Set(ctx, key, data, defaultMemoryTTL)
	return data, nil
}

// Set writes L2 first; L1 keeps the entry for at most an hour
func (c *MultiLevelCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := c.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	l1Expiration := expiration
	if l1Expiration <= 0 || l1Expiration > defaultMemoryTTL {
		l1Expiration = defaultMemoryTTL
	}
	return c.l1.Set(ctx, key, value, l1Expiration)
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	return c.l2.Delete(ctx, key)
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return c.l2.Exists(ctx, key)
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	return c.l2.Close()
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	return c.l2.Health(ctx)
}

// New returns a Valkey-backed multi-level cache when valkeyURL is set and an
// in-process cache otherwise.
func New(valkeyURL string, l1MaxItems int) (Cache, error) {
	if valkeyURL == "" {
		return NewMemoryCache(l1MaxItems), nil
	}
	l2, err := NewValkeyCache(valkeyURL)
	if err != nil {
		return nil, err
	}
	return NewMultiLevelCache(l2, l1MaxItems), nil
}
