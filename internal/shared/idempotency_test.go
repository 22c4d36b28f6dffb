package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestIdempotencyStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyCheckAndInsert(t *testing.T) {
	store, _ := newTestIdempotencyStore(t)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "req-1", "inventory"), ErrIdempotencyConflict)

	// Same key under another module is a distinct claim.
	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "billing"))
}

func TestIdempotencyDeleteReleasesKey(t *testing.T) {
	store, _ := newTestIdempotencyStore(t)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
	require.NoError(t, store.Delete(ctx, "req-1", "inventory"))
	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
}

func TestIdempotencyKeyExpires(t *testing.T) {
	store, mr := newTestIdempotencyStore(t)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
	mr.FastForward(2 * time.Hour)
	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
}

func TestIdempotencyInputValidation(t *testing.T) {
	store, _ := newTestIdempotencyStore(t)
	ctx := context.Background()

	require.Error(t, store.CheckAndInsert(ctx, "", "inventory"))
	require.Error(t, store.CheckAndInsert(ctx, "req-1", ""))
	require.Error(t, store.Delete(ctx, "", "inventory"))

	var nilStore *IdempotencyStore
	require.Error(t, nilStore.CheckAndInsert(ctx, "req-1", "inventory"))
	require.NoError(t, nilStore.Delete(ctx, "req-1", "inventory"))
}
