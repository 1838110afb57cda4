package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

func newMiniRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, zap.NewNop())
}

func TestRedisStoreAppendAndHistory(t *testing.T) {
	s := newMiniRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, NewEntry("assistant", types.RoleUser, "hello")))
	require.NoError(t, s.Append(ctx, NewEntry("assistant", types.RoleAssistant, "hi")))
	require.NoError(t, s.Append(ctx, NewEntry("assistant", types.RoleUser, "how are you")))

	entries, err := s.History(ctx, "assistant", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "hello", entries[0].Content)
	assert.Equal(t, "how are you", entries[2].Content)

	limited, err := s.History(ctx, "assistant", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "hi", limited[0].Content)
}

func TestRedisStoreTrimOldest(t *testing.T) {
	s := newMiniRedisStore(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, s.Append(ctx, NewEntry("assistant", types.RoleUser, msg)))
	}

	require.NoError(t, s.TrimOldest(ctx, "assistant", 2))
	entries, err := s.History(ctx, "assistant", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "third", entries[0].Content)
}

func TestRedisStoreClearAndIsolation(t *testing.T) {
	s := newMiniRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, NewEntry("a", types.RoleUser, "for a")))
	require.NoError(t, s.Append(ctx, NewEntry("b", types.RoleUser, "for b")))

	require.NoError(t, s.Clear(ctx, "a"))

	aEntries, err := s.History(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, aEntries)

	bEntries, err := s.History(ctx, "b", 0)
	require.NoError(t, err)
	require.Len(t, bEntries, 1)
}
