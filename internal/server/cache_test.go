package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type fakeCacher struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newFakeCacher() *fakeCacher {
	return &fakeCacher{data: make(map[string][]byte)}
}

func (f *fakeCacher) Get(_ context.Context, key string, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return f.getErr
	}
	b, ok := f.data[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(b, dest)
}

func (f *fakeCacher) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = b
	return nil
}

func (f *fakeCacher) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func TestFindAndCache_Hit(t *testing.T) {
	cache := newFakeCacher()
	require.NoError(t, cache.Set(context.Background(), "answer", 42, 0))

	var sf singleflight.Group
	value, err := findAndCache(context.Background(), cache, &sf, "answer", time.Minute, zap.NewNop(),
		func(ctx context.Context) (int, error) {
			t.Fatal("fetch must not run on a cache hit")
			return 0, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestFindAndCache_MissFetchesAndStores(t *testing.T) {
	cache := newFakeCacher()

	var sf singleflight.Group
	value, err := findAndCache(context.Background(), cache, &sf, "answer", time.Minute, zap.NewNop(),
		func(ctx context.Context) (int, error) {
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, value)

	// The cache write happens off the request path.
	assert.Eventually(t, func() bool {
		return cache.has("answer")
	}, time.Second, 10*time.Millisecond)
}

func TestFindAndCache_GetErrorDegradesToFetch(t *testing.T) {
	cache := newFakeCacher()
	cache.getErr = errors.New("connection refused")

	var sf singleflight.Group
	value, err := findAndCache(context.Background(), cache, &sf, "answer", time.Minute, zap.NewNop(),
		func(ctx context.Context) (int, error) {
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestFindAndCache_FetchError(t *testing.T) {
	cache := newFakeCacher()

	var sf singleflight.Group
	_, err := findAndCache(context.Background(), cache, &sf, "answer", time.Minute, zap.NewNop(),
		func(ctx context.Context) (int, error) {
			return 0, errors.New("query failed")
		})

	assert.ErrorContains(t, err, "query failed")
	assert.False(t, cache.has("answer"))
}

func TestAddTTLJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), addTTLJitter(0))
	assert.Equal(t, -time.Second, addTTLJitter(-time.Second))

	for i := 0; i < 50; i++ {
		got := addTTLJitter(5 * time.Minute)
		assert.GreaterOrEqual(t, got, 5*time.Minute-15*time.Second)
		assert.LessOrEqual(t, got, 5*time.Minute+15*time.Second)
	}
}
