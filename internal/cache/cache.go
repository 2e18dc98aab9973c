package cache

import (
	"context"
	"time"
)

// DefaultTTL is applied when a caller stores an entry without a positive TTL.
const DefaultTTL = 60 * time.Second

// Cache defines a minimal string-keyed cache API with a TTL per entry.
type Cache[V any] interface {
	// Get returns the value only while now - createdAt < ttl; expired entries are evicted.
	Get(key string) (V, bool)

	// Set stores the value, overwriting any existing entry.
	Set(key string, value V, ttl time.Duration)

	// Delete removes a key if present.
	Delete(key string)

	// Len returns the number of non-expired items currently stored.
	Len() int

	// Keys returns the non-expired keys.
	Keys() []string

	// Clear removes all entries.
	Clear()

	// ClearPrefix removes every entry whose key starts with prefix and reports how many went.
	ClearPrefix(prefix string) int

	// PurgeExpired scans and removes expired entries.
	PurgeExpired()
}

// Store is the byte-oriented backend behind RequestCache. The in-memory
// implementation is process-local; the valkey one is shared across instances.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// KeyLister is implemented by stores that can enumerate their keys cheaply.
type KeyLister interface {
	Keys(ctx context.Context) ([]string, error)
}
