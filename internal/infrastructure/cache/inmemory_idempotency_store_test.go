package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(WithClock(clock.Now), WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	isNew, err := store.MarkProcessed(ctx, "import-1:2", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "import-1:2", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "import-1:3", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "keys are independent")

	clock.Advance(time.Hour)
	isNew, err = store.MarkProcessed(ctx, "import-1:2", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "an expired mark can be set again")
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	processed, err := store.IsProcessed(ctx, "import-1:2")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "import-1:2", time.Minute)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "import-1:2")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(time.Minute)
	processed, err = store.IsProcessed(ctx, "import-1:2")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_EvictExpired(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(t)

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 3, store.Size())

	clock.Advance(2 * time.Second)
	store.evictExpired()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_BackgroundSweep(t *testing.T) {
	store := NewInMemoryIdempotencyStore(WithCleanupInterval(5 * time.Millisecond))
	defer store.Close()

	_, err := store.MarkProcessed(context.Background(), "gone", time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInMemoryIdempotencyStore_ConcurrentMarks(t *testing.T) {
	store, _ := newClockedStore(t)
	const n = 100

	results := make(chan bool, n)
	for range n {
		go func() {
			isNew, err := store.MarkProcessed(context.Background(), "same-row", time.Hour)
			results <- err == nil && isNew
		}()
	}

	fresh := 0
	for range n {
		if <-results {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
