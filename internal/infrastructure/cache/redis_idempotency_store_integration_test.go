//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/erp/stockengine/internal/infrastructure/config"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return config.RedisConfig{Enabled: true, Host: host, Port: port.Int()}
}

func TestRedisIdempotencyStore(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	isNew, err := store.MarkProcessed(ctx, "import-7:12", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "import-7:12", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, "import-7:12")
	require.NoError(t, err)
	assert.True(t, processed)

	ttl, err := store.Client().TTL(ctx, DefaultKeyPrefix+"import-7:12").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	processed, err = store.IsProcessed(ctx, "import-7:13")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRedisIdempotencyStore_SharedBetweenClients(t *testing.T) {
	cfg := startRedis(t)
	ctx := context.Background()

	first, err := NewIdempotencyStore(ctx, cfg, WithInMemoryFallback(false))
	require.NoError(t, err)
	defer first.Close()
	second, err := NewIdempotencyStore(ctx, cfg, WithInMemoryFallback(false))
	require.NoError(t, err)
	defer second.Close()

	isNew, err := first.MarkProcessed(ctx, "import-8:1", time.Minute)
	require.NoError(t, err)
	require.True(t, isNew)

	isNew, err = second.MarkProcessed(ctx, "import-8:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)
}
