package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionKeyNormalizesMessage(t *testing.T) {
	assert.Equal(t, decisionKey("intent", "Book A Meeting"), decisionKey("intent", "  book a meeting  "))
	assert.NotEqual(t, decisionKey("intent", "book"), decisionKey("confirmation", "book"))
}

func TestMemoryDecisionCache(t *testing.T) {
	cache := NewMemoryDecisionCache()
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "booking", time.Minute))
	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "booking", value)
}

func TestMemoryDecisionCacheExpiry(t *testing.T) {
	cache := NewMemoryDecisionCache()
	current := time.Now()
	cache.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "rag", time.Minute))

	current = current.Add(2 * time.Minute)
	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisDecisionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisDecisionCache(client, nil)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", "booking", time.Minute))
	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "booking", value)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
