package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateGenerateInMemory(t *testing.T) {
	limiter := fallbackLimiter(Config{
		IPLimitPerMin:   60,
		GeneratePerHour: 1,
		BurstMultiplier: 1,
	})

	ctx := context.Background()

	// Exhaust the budget (burst floor is 5)
	for i := 0; i < 6; i++ {
		_, err := limiter.AllowGenerate(ctx, "octocat")
		require.NoError(t, err)
	}
	blocked, err := limiter.AllowGenerate(ctx, "octocat")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	// Reset and the username gets a fresh budget
	require.NoError(t, limiter.InvalidateGenerate(ctx, "octocat"))

	fresh, err := limiter.AllowGenerate(ctx, "octocat")
	require.NoError(t, err)
	assert.True(t, fresh.Allowed)
}

func TestInvalidateIPInMemory(t *testing.T) {
	limiter := fallbackLimiter(Config{
		IPLimitPerMin:   1,
		GeneratePerHour: 10,
		BurstMultiplier: 1,
	})

	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.AllowIP(ctx, "198.51.100.50")
		require.NoError(t, err)
	}
	blocked, err := limiter.AllowIP(ctx, "198.51.100.50")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	require.NoError(t, limiter.InvalidateIP(ctx, "198.51.100.50"))

	fresh, err := limiter.AllowIP(ctx, "198.51.100.50")
	require.NoError(t, err)
	assert.True(t, fresh.Allowed)
}

func TestInvalidateAllInMemory(t *testing.T) {
	limiter := fallbackLimiter(DefaultConfig())

	ctx := context.Background()
	_, err := limiter.AllowIP(ctx, "198.51.100.60")
	require.NoError(t, err)
	_, err = limiter.AllowGenerate(ctx, "octocat")
	require.NoError(t, err)

	count, err := limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, limiter.InvalidateAll(ctx))

	count, err = limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInvalidateUnknownKeyIsNoOp(t *testing.T) {
	limiter := fallbackLimiter(DefaultConfig())

	ctx := context.Background()
	require.NoError(t, limiter.InvalidateGenerate(ctx, "ghost"))
	require.NoError(t, limiter.InvalidateIP(ctx, "203.0.113.99"))
}
