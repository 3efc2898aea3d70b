//go:build integration

package collectors_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradingagents/internal/testutil"
)

func TestCacheAgainstRealRedis(t *testing.T) {
	ctx := context.Background()
	rc, err := testutil.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer rc.Stop(ctx)

	cache := rc.NewCache()
	require.True(t, cache.Enabled())

	type record struct {
		Value string `json:"value"`
	}

	var out record
	hit, err := cache.Get(ctx, "missing-key", &out)
	require.NoError(t, err)
	require.False(t, hit)

	cache.Set(ctx, "present-key", record{Value: "hello"}, time.Minute)

	hit, err = cache.Get(ctx, "present-key", &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "hello", out.Value)
}
