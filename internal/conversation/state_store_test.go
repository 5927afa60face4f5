package conversation

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStateStore(client, nil), mr
}

func TestStateStoreRoundTrip(t *testing.T) {
	store, _ := newTestStateStore(t)
	ctx := context.Background()

	state := NewState()
	state.AppendUser("book a meeting tomorrow")
	state.Stage = StageAwaitingSlotSelection
	state.RequestedDate = "2025-10-14"
	state.UserName = "Jane Doe"

	require.NoError(t, store.Save(ctx, "conv-1", state))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StageAwaitingSlotSelection, loaded.Stage)
	assert.Equal(t, "2025-10-14", loaded.RequestedDate)
	assert.Equal(t, "Jane Doe", loaded.UserName)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "book a meeting tomorrow", loaded.Messages[0].Content)
}

func TestStateStoreLoadMissing(t *testing.T) {
	store, _ := newTestStateStore(t)

	state, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateStoreSaveNilDeletes(t *testing.T) {
	store, mr := newTestStateStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-1", NewState()))
	assert.True(t, mr.Exists("conversation_state:conv-1"))

	require.NoError(t, store.Save(ctx, "conv-1", nil))
	assert.False(t, mr.Exists("conversation_state:conv-1"))
}

func TestStateStoreDelete(t *testing.T) {
	store, mr := newTestStateStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-1", NewState()))
	require.NoError(t, store.Delete(ctx, "conv-1"))
	assert.False(t, mr.Exists("conversation_state:conv-1"))
}

func TestStateStoreExpiry(t *testing.T) {
	store, mr := newTestStateStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-1", NewState()))
	mr.FastForward(stateTTL + 1)

	state, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, state)
}
