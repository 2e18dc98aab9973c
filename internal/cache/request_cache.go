package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// LookupResult labels the outcome of a RequestCache lookup.
type LookupResult string

const (
	LookupHit       LookupResult = "hit"
	LookupMiss      LookupResult = "miss"
	LookupCoalesced LookupResult = "coalesced"
	LookupError     LookupResult = "error"
)

// Observer receives cache lookup outcomes. metrics.Recorder implements it.
type Observer interface {
	ObserveCacheLookup(resource string, result string, duration time.Duration)
}

// Loader produces the value for a missed key. cacheable=false keeps the value
// out of the cache (degraded responses must not be served as fresh data).
type Loader[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// FetchInfo describes how a Fetch was satisfied.
type FetchInfo struct {
	Hit       bool
	Coalesced bool
}

// Stats is the administrative view of the cache.
type Stats struct {
	Size      int      `json:"size"`
	Keys      []string `json:"keys,omitempty"`
	Hits      int64    `json:"hits"`
	Misses    int64    `json:"misses"`
	Coalesced int64    `json:"coalesced"`
	Errors    int64    `json:"errors"`
	TTL       string   `json:"ttl"`
}

// RequestCache holds recent query results keyed by resource, filters and page.
// Concurrent misses for the same key share one load.
type RequestCache struct {
	store    Store
	ttl      time.Duration
	logger   *slog.Logger
	observer Observer
	group    singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
	errors    atomic.Int64
}

// RequestCacheOptions wires optional collaborators.
type RequestCacheOptions struct {
	TTL      time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// NewRequestCache wraps store. A nil store falls back to a process-local memory store.
func NewRequestCache(store Store, opts RequestCacheOptions) *RequestCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if store == nil {
		store = NewMemoryStore(ttl)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RequestCache{
		store:    store,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "request_cache")),
		observer: opts.Observer,
	}
}

// TTL returns the default entry lifetime.
func (c *RequestCache) TTL() time.Duration { return c.ttl }

type flight struct {
	payload   []byte
	cacheable bool
}

// Fetch returns the cached value for key or runs load once for every concurrent caller.
func Fetch[T any](ctx context.Context, c *RequestCache, key string, ttl time.Duration, load Loader[T]) (T, FetchInfo, error) {
	var zero T
	start := time.Now()
	resource := Resource(key)

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.errors.Add(1)
		c.observe(resource, LookupError, start)
		c.logger.Warn("cache lookup failed", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.hits.Add(1)
			c.observe(resource, LookupHit, start)
			return v, FetchInfo{Hit: true}, nil
		}
		c.logger.Warn("cache entry undecodable, reloading", slog.String("key", key))
	}

	// singleflight reports shared for the leader too, so the leader is the
	// caller whose closure ran.
	var leader bool
	res, err, _ := c.group.Do(key, func() (any, error) {
		leader = true
		c.misses.Add(1)
		// The load outlives a caller that gives up; other waiters still need the result.
		loadCtx := context.WithoutCancel(ctx)
		v, cacheable, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", resource, err)
		}
		if cacheable {
			if err := c.store.Set(loadCtx, key, payload, ttl); err != nil {
				c.errors.Add(1)
				c.logger.Warn("cache store failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return flight{payload: payload, cacheable: cacheable}, nil
	})
	info := FetchInfo{Coalesced: !leader}
	if leader {
		c.observe(resource, LookupMiss, start)
	} else {
		c.coalesced.Add(1)
		c.observe(resource, LookupCoalesced, start)
	}
	if err != nil {
		return zero, info, err
	}

	var v T
	if err := json.Unmarshal(res.(flight).payload, &v); err != nil {
		return zero, info, fmt.Errorf("cache: decode %s: %w", resource, err)
	}
	return v, info, nil
}

// Peek returns a cached value without loading on a miss.
func Peek[T any](ctx context.Context, c *RequestCache, key string) (T, bool) {
	var v T
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// Put stores v under key.
func Put[T any](ctx context.Context, c *RequestCache, key string, v T, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", Resource(key), err)
	}
	return c.store.Set(ctx, key, payload, ttl)
}

// ClearPrefix evicts every key under prefix.
func (c *RequestCache) ClearPrefix(ctx context.Context, prefix string) (int, error) {
	n, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("cache prefix cleared", slog.String("prefix", prefix), slog.Int("removed", n))
	return n, nil
}

// Clear evicts everything.
func (c *RequestCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Stats reports counters plus the current size and keys.
func (c *RequestCache) Stats(ctx context.Context) (Stats, error) {
	size, err := c.store.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Size:      size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Errors:    c.errors.Load(),
		TTL:       c.ttl.String(),
	}
	if lister, ok := c.store.(KeyLister); ok {
		keys, err := lister.Keys(ctx)
		if err != nil {
			return Stats{}, err
		}
		stats.Keys = keys
	}
	return stats, nil
}

// Close releases the backing store.
func (c *RequestCache) Close() error {
	return c.store.Close()
}

func (c *RequestCache) observe(resource string, result LookupResult, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveCacheLookup(resource, string(result), time.Since(start))
}
