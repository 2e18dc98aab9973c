package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// entry stores a cached value with the moment it was written and its lifetime.
type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e entry[V]) live(at time.Time) bool {
	return at.Sub(e.createdAt) < e.ttl
}

// SimpleCache is a map-backed cache guarded by a mutex.
// There is no background janitor; expired entries go lazily on access or via PurgeExpired.
type SimpleCache[V any] struct {
	mu         sync.Mutex
	defaultTTL time.Duration
	items      map[string]entry[V]
}

// Options controls construction of a SimpleCache.
type Options struct {
	// DefaultTTL is used when Set receives ttl <= 0. Zero means DefaultTTL.
	DefaultTTL time.Duration
}

// NewSimpleCache constructs a new SimpleCache with the given options.
func NewSimpleCache[V any](opts Options) *SimpleCache[V] {
	ttl := opts.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SimpleCache[V]{
		defaultTTL: ttl,
		items:      make(map[string]entry[V]),
	}
}

// now is a small indirection to allow test stubbing if needed.
var now = time.Now

// Get implements Cache.Get.
func (c *SimpleCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !e.live(now()) {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Set implements Cache.Set.
func (c *SimpleCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.items[key] = entry[V]{
		value:     value,
		createdAt: now(),
		ttl:       ttl,
	}
}

// Delete implements Cache.Delete.
func (c *SimpleCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len implements Cache.Len. It counts only non-expired entries.
func (c *SimpleCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	ts := now()
	for _, e := range c.items {
		if e.live(ts) {
			count++
		}
	}
	return count
}

// Keys implements Cache.Keys in sorted order.
func (c *SimpleCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := now()
	keys := make([]string, 0, len(c.items))
	for k, e := range c.items {
		if e.live(ts) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clear implements Cache.Clear.
func (c *SimpleCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
}

// ClearPrefix implements Cache.ClearPrefix.
func (c *SimpleCache[V]) ClearPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// PurgeExpired implements Cache.PurgeExpired.
func (c *SimpleCache[V]) PurgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return
	}
	ts := now()
	for k, e := range c.items {
		if !e.live(ts) {
			delete(c.items, k)
		}
	}
}

// Ensure SimpleCache implements Cache at compile time.
var _ Cache[any] = (*SimpleCache[any])(nil)

// memoryStore adapts SimpleCache to the Store interface.
type memoryStore struct {
	items *SimpleCache[[]byte]
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore(defaultTTL time.Duration) Store {
	return &memoryStore{items: NewSimpleCache[[]byte](Options{DefaultTTL: defaultTTL})}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items.Get(key)
	return v, ok, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.Set(key, value, ttl)
	return nil
}

func (m *memoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	return m.items.ClearPrefix(prefix), nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.items.Clear()
	return nil
}

func (m *memoryStore) Len(context.Context) (int, error) {
	return m.items.Len(), nil
}

func (m *memoryStore) Keys(context.Context) ([]string, error) {
	return m.items.Keys(), nil
}

func (m *memoryStore) Close() error { return nil }
