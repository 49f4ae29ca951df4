package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	store := NewRedisIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "batch-1", "recipes.deduct"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "batch-1", "recipes.deduct"), ErrIdempotencyConflict)

	require.NoError(t, store.Delete(ctx, "batch-1"))
	require.NoError(t, store.CheckAndInsert(ctx, "batch-1", "recipes.deduct"))

	srv.FastForward(2 * time.Minute)
	require.NoError(t, store.CheckAndInsert(ctx, "batch-1", "recipes.deduct"))

	require.ErrorIs(t, store.CheckAndInsert(ctx, "", "recipes.deduct"), ErrIdempotencyKeyRequired)
}
