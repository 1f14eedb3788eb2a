//go:build integration

package battle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, rdb.Ping(ctx).Err(), "redis is not reachable")
	return rdb
}

func TestRedisSnapshotStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	store := NewRedisSnapshotStore(rdb, time.Hour)

	c := NewCoordinator(idleEngine{}, 0)
	c.StartBattle(testRoom("r_it_1"), testM1, testM2)
	_, _ = c.SubmitCommands("r_it_1", Player1, cmds(Attack, Special))
	_, _ = c.SubmitCommands("r_it_1", Player2, cmds(Retreat, Reflect))
	_, err := c.ExecuteTurn("r_it_1")
	require.NoError(t, err)
	_, _ = c.SubmitCommands("r_it_1", Player2, DefaultCommands)

	snap, ok := c.Snapshot("r_it_1")
	require.True(t, ok)
	require.NoError(t, store.Save(ctx, snap))

	got, ok, err := store.Load(ctx, "r_it_1")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, snap.State, got.State)
	require.Len(t, got.History, 1)
	require.Equal(t, cmds(Attack, Special), got.History[0].Player1Commands)
	require.Nil(t, got.Pending.Player1)
	require.NotNil(t, got.Pending.Player2)
	require.Equal(t, "m1", got.Player1Monster)

	ttl, err := rdb.TTL(ctx, "battle:r_it_1:snapshot").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	_, ok, err = store.Load(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}
