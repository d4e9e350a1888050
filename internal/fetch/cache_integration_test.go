//go:build integration

package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	cache, err := NewRedisCache(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	_, ok, err := cache.Get(ctx, "https://vbpl.vn/x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "https://vbpl.vn/x", []byte("<html/>"), time.Minute))
	body, ok, err := cache.Get(ctx, "https://vbpl.vn/x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html/>", string(body))
}
