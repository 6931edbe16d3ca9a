package cache

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("get set invalidate", func(t *testing.T) {
		m := NewMemory(0)
		_, ok, err := m.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)

		value := []byte("one")
		require.NoError(t, m.Set(ctx, "a", value))
		value[0] = 'X'
		got, ok, err := m.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "one", string(got), "stored value is copied")

		require.NoError(t, m.Invalidate(ctx))
		_, ok, _ = m.Get(ctx, "a")
		assert.False(t, ok)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		m := NewMemory(20 * time.Millisecond)
		require.NoError(t, m.Set(ctx, "a", []byte("1")))
		require.NoError(t, m.Set(ctx, "b", []byte("2")))
		assert.Equal(t, 2, m.Len())

		assert.Eventually(t, func() bool {
			_, ok, _ := m.Get(ctx, "a")
			return !ok
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("zero ttl keeps entries", func(t *testing.T) {
		m := NewMemory(0)
		require.NoError(t, m.Set(ctx, "a", []byte("1")))
		time.Sleep(10 * time.Millisecond)
		got, ok, _ := m.Get(ctx, "a")
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), got)
	})

	t.Run("concurrent use", func(t *testing.T) {
		m := NewMemory(0)
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = m.Set(ctx, "k", []byte{byte(j)})
					_, _, _ = m.Get(ctx, "k")
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, m.Len())
	})
}

// fakeRedis is an in-memory redisClient; Scan returns at most two keys per
// page to exercise cursor handling. A cursor remembers the last key it
// returned, so deleting keys between pages does not skip any.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	cursors map[uint64]string
	next    uint64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:    make(map[string]string),
		ttls:    make(map[string]time.Duration),
		cursors: make(map[uint64]string),
	}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.data {
		if ok, _ := path.Match(match, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if cursor != 0 {
		after := f.cursors[cursor]
		delete(f.cursors, cursor)
		keys = keys[sort.SearchStrings(keys, after+"\x00"):]
	}
	if len(keys) <= 2 {
		return redis.NewScanCmdResult(keys, 0, nil)
	}
	page := keys[:2]
	f.next++
	f.cursors[f.next] = page[len(page)-1]
	return redis.NewScanCmdResult(page, f.next, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error {
	return nil
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	c := newRedis(rdb, "fabricnms:", 10*time.Minute, zaptest.NewLogger(t))

	_, ok, err := c.Get(ctx, "settings:acc-01:ACCESS")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "settings:acc-01:ACCESS", []byte("tree")))
	assert.Equal(t, "tree", rdb.data["fabricnms:settings:acc-01:ACCESS"])
	assert.Equal(t, 10*time.Minute, rdb.ttls["fabricnms:settings:acc-01:ACCESS"])

	got, ok, err := c.Get(ctx, "settings:acc-01:ACCESS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("tree"), got)

	t.Run("invalidate only drops prefixed keys", func(t *testing.T) {
		for _, k := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, c.Set(ctx, "file:"+k, []byte(k)))
		}
		rdb.data["other:key"] = "keep"

		require.NoError(t, c.Invalidate(ctx))
		assert.Equal(t, map[string]string{"other:key": "keep"}, rdb.data)
	})

	t.Run("invalidate drops every page", func(t *testing.T) {
		for i := 0; i < 9; i++ {
			require.NoError(t, c.Set(ctx, fmt.Sprintf("settings:host-%02d", i), []byte("x")))
		}
		require.NoError(t, c.Invalidate(ctx))
		for k := range rdb.data {
			assert.False(t, strings.HasPrefix(k, "fabricnms:"), "leftover key %s", k)
		}
	})
}
