package store

import (
	"context"
	"testing"
	"time"

	"github.com/RicardoMLopes/wsh/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *AggregateCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewAggregateCache(NewRedisKV(client), "putaway:aggregate:", time.Minute)
}

var cacheKey = domain.AggregateKey{Reference: "REF-1", Waybill: "WB-9", PartNumber: "PN-100"}

func TestAggregateCache_PutGet(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	agg := &domain.Aggregate{
		ID:           9,
		Key:          cacheKey,
		DeclaredQty:  decimal.NewFromInt(100),
		RevisedQty:   decimal.RequireFromString("12.25"),
		Users:        domain.NewUserSet("u1", "u2"),
		ProcessStart: &start,
		Status:       domain.AggregateActive,
	}
	require.NoError(t, cache.Put(ctx, agg))

	assert.True(t, mr.Exists("putaway:aggregate:REF-1:WB-9:PN-100"))
	assert.Equal(t, time.Minute, mr.TTL("putaway:aggregate:REF-1:WB-9:PN-100"))

	got, err := cache.Get(ctx, cacheKey)
	require.NoError(t, err)
	assert.EqualValues(t, 9, got.ID)
	assert.True(t, got.RevisedQty.Equal(agg.RevisedQty))
	assert.Equal(t, []string{"u1", "u2"}, got.Users.IDs())
	require.NotNil(t, got.ProcessStart)
	assert.True(t, got.ProcessStart.Equal(start))
}

func TestAggregateCache_Miss(t *testing.T) {
	_, cache := setupTestCache(t)

	_, err := cache.Get(context.Background(), cacheKey)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestAggregateCache_Invalidate(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &domain.Aggregate{Key: cacheKey}))
	require.NoError(t, cache.Invalidate(ctx, cacheKey))
	assert.False(t, mr.Exists(cache.Key(cacheKey)))

	assert.NoError(t, cache.Invalidate(ctx))
}

func TestAggregateCache_Expires(t *testing.T) {
	mr, cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &domain.Aggregate{Key: cacheKey}))
	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, cacheKey)
	assert.ErrorIs(t, err, ErrMiss)
}
