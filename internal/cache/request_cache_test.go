package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

type page struct {
	Items []string `json:"items"`
}

func TestKeyBuilderEncodesDistinctQueries(t *testing.T) {
	a := NewKey("approvals:briefs").WithList("clients", []string{"a,b"}).With("page", "1").String()
	b := NewKey("approvals:briefs").WithList("clients", []string{"a", "b"}).With("page", "1").String()
	c := NewKey("approvals:briefs").With("page", "1").WithList("clients", []string{"a", "b"}).String()
	require.NotEqual(t, a, b)
	require.Equal(t, b, c)
	require.Equal(t, "approvals:briefs", Resource(b))
}

func TestFetchServesSecondCallFromCache(t *testing.T) {
	rc := NewRequestCache(nil, RequestCacheOptions{})
	ctx := context.Background()
	var calls int
	load := func(context.Context) (page, bool, error) {
		calls++
		return page{Items: []string{"one"}}, true, nil
	}

	got, info, err := Fetch(ctx, rc, "k", 0, load)
	require.NoError(t, err)
	require.False(t, info.Hit)
	require.Equal(t, []string{"one"}, got.Items)

	got, info, err = Fetch(ctx, rc, "k", 0, load)
	require.NoError(t, err)
	require.True(t, info.Hit)
	require.Equal(t, []string{"one"}, got.Items)
	require.Equal(t, 1, calls)

	stats, err := rc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, []string{"k"}, stats.Keys)
}

func TestFetchDoesNotCacheUncacheable(t *testing.T) {
	rc := NewRequestCache(nil, RequestCacheOptions{})
	ctx := context.Background()
	var calls int
	load := func(context.Context) (page, bool, error) {
		calls++
		return page{Items: []string{"mock"}}, false, nil
	}
	_, _, err := Fetch(ctx, rc, "k", 0, load)
	require.NoError(t, err)
	_, _, err = Fetch(ctx, rc, "k", 0, load)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestFetchPropagatesLoaderError(t *testing.T) {
	rc := NewRequestCache(nil, RequestCacheOptions{})
	boom := errors.New("boom")
	_, _, err := Fetch(context.Background(), rc, "k", 0, func(context.Context) (page, bool, error) {
		return page{}, false, boom
	})
	require.ErrorIs(t, err, boom)
	_, ok := Peek[page](context.Background(), rc, "k")
	require.False(t, ok)
}

func TestFetchCoalescesConcurrentMisses(t *testing.T) {
	rc := NewRequestCache(nil, RequestCacheOptions{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(context.Context) (page, bool, error) {
		calls.Add(1)
		<-release
		return page{Items: []string{"shared"}}, true, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]page, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Fetch(context.Background(), rc, "same", 0, load)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	// give every goroutine time to join the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.Equal(t, []string{"shared"}, r.Items)
	}

	// One caller loaded; the rest joined the flight or, if late, hit the entry.
	stats, err := rc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(callers-1), stats.Coalesced+stats.Hits)
}

func TestFetchExpiresAfterTTL(t *testing.T) {
	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	rc := NewRequestCache(nil, RequestCacheOptions{TTL: time.Minute})
	var calls int
	load := func(context.Context) (page, bool, error) {
		calls++
		return page{}, true, nil
	}
	_, _, _ = Fetch(context.Background(), rc, "k", 0, load)
	base = base.Add(59 * time.Second)
	_, info, _ := Fetch(context.Background(), rc, "k", 0, load)
	require.True(t, info.Hit)
	base = base.Add(time.Second)
	_, info, _ = Fetch(context.Background(), rc, "k", 0, load)
	require.False(t, info.Hit)
	require.Equal(t, 2, calls)
}

func TestRequestCacheClearPrefix(t *testing.T) {
	rc := NewRequestCache(nil, RequestCacheOptions{})
	ctx := context.Background()
	require.NoError(t, Put(ctx, rc, "tasks?page=1", page{}, 0))
	require.NoError(t, Put(ctx, rc, "approvals:briefs?page=1", page{}, 0))

	n, err := rc.ClearPrefix(ctx, "tasks")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok := Peek[page](ctx, rc, "approvals:briefs?page=1")
	require.True(t, ok)
	require.NoError(t, rc.Clear(ctx))
	stats, err := rc.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Size)
}

func TestRedisStore(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	store, err := NewRedisStore(RedisConfig{Address: server.Addr()}, time.Minute)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tasks?page=1", []byte(`{"items":["a"]}`), time.Second))
	require.NoError(t, store.Set(ctx, "kpis?client=rec1", []byte(`{}`), 0))

	raw, ok, err := store.Get(ctx, "tasks?page=1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"items":["a"]}`, string(raw))

	size, err := store.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, size)

	server.FastForward(2 * time.Second)
	_, ok, err = store.Get(ctx, "tasks?page=1")
	require.NoError(t, err)
	require.False(t, ok)

	n, err := store.DeletePrefix(ctx, "kpis")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rc := NewRequestCache(store, RequestCacheOptions{})
	_, _, err = Fetch(ctx, rc, "clients", 0, func(context.Context) (page, bool, error) {
		return page{Items: []string{"acme"}}, true, nil
	})
	require.NoError(t, err)
	got, ok := Peek[page](ctx, rc, "clients")
	require.True(t, ok)
	require.Equal(t, []string{"acme"}, got.Items)
	require.True(t, server.Exists("portal:clients"))
}
