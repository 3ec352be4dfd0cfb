package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionManagerLocalOnly(t *testing.T) {
	m := NewConnectionManager(nil, ConnectionManagerConfig{
		OfflineGracePeriod: 20 * time.Millisecond,
	})
	defer m.Stop()
	ctx := context.Background()

	t.Run("register marks online", func(t *testing.T) {
		m.Register(ctx, 1)
		assert.True(t, m.IsOnline(ctx, 1))
		assert.Equal(t, []uint{1}, m.GetOnlineUserIDs(ctx))
	})

	t.Run("second connection keeps user online through one close", func(t *testing.T) {
		m.Register(ctx, 1)
		m.Unregister(ctx, 1)
		assert.True(t, m.IsOnline(ctx, 1))
	})

	t.Run("offline after grace", func(t *testing.T) {
		m.Unregister(ctx, 1)
		assert.Eventually(t, func() bool {
			return !m.IsOnline(ctx, 1)
		}, time.Second, 10*time.Millisecond)
	})
}

func TestConnectionManagerTransitions(t *testing.T) {
	var mu sync.Mutex
	online := []uint{}
	offline := []uint{}

	m := NewConnectionManager(nil, ConnectionManagerConfig{
		OfflineGracePeriod: 20 * time.Millisecond,
		OnUserOnline: func(userID uint) {
			mu.Lock()
			online = append(online, userID)
			mu.Unlock()
		},
		OnUserOffline: func(userID uint) {
			mu.Lock()
			offline = append(offline, userID)
			mu.Unlock()
		},
	})
	defer m.Stop()
	ctx := context.Background()

	t.Run("online fires once per transition", func(t *testing.T) {
		m.Register(ctx, 5)
		m.Register(ctx, 5)

		mu.Lock()
		assert.Equal(t, []uint{5}, online)
		mu.Unlock()
	})

	t.Run("reconnect within grace suppresses offline", func(t *testing.T) {
		m.Unregister(ctx, 5)
		m.Unregister(ctx, 5)
		m.Register(ctx, 5)

		time.Sleep(60 * time.Millisecond)
		mu.Lock()
		assert.Empty(t, offline)
		mu.Unlock()
	})

	t.Run("offline fires after the grace window", func(t *testing.T) {
		m.Unregister(ctx, 5)

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(offline) == 1 && offline[0] == 5
		}, time.Second, 10*time.Millisecond)
	})
}

func TestConnectionManagerRedisPresence(t *testing.T) {
	rdb := newTestRedis(t)
	m := NewConnectionManager(rdb, ConnectionManagerConfig{
		OfflineGracePeriod: 20 * time.Millisecond,
		LastSeenTTL:        time.Minute,
	})
	defer m.Stop()
	ctx := context.Background()

	t.Run("register mirrors presence in redis", func(t *testing.T) {
		m.Register(ctx, 9)

		members, err := rdb.SMembers(ctx, "presence:online_users").Result()
		require.NoError(t, err)
		assert.Contains(t, members, "9")

		exists, err := rdb.Exists(ctx, "presence:last_seen:9").Result()
		require.NoError(t, err)
		assert.EqualValues(t, 1, exists)
	})

	t.Run("cross-process presence counts as online", func(t *testing.T) {
		// Another process wrote presence for user 11; no local connections.
		require.NoError(t, rdb.SAdd(ctx, "presence:online_users", "11").Err())
		require.NoError(t, rdb.SetEx(ctx, "presence:last_seen:11", "1", time.Minute).Err())

		assert.True(t, m.IsOnline(ctx, 11))
		assert.ElementsMatch(t, []uint{9, 11}, m.GetOnlineUserIDs(ctx))
	})

	t.Run("reap removes stale entries", func(t *testing.T) {
		require.NoError(t, rdb.SAdd(ctx, "presence:online_users", "13").Err())
		// No last_seen key for 13: it is stale.

		m.reapOnce(ctx)

		members, err := rdb.SMembers(ctx, "presence:online_users").Result()
		require.NoError(t, err)
		assert.NotContains(t, members, "13")
	})

	t.Run("unregister clears redis after grace", func(t *testing.T) {
		// Expire the heartbeat first; a live last_seen key means another
		// process still holds a connection and presence must survive.
		require.NoError(t, rdb.Del(ctx, "presence:last_seen:9").Err())
		m.Unregister(ctx, 9)

		assert.Eventually(t, func() bool {
			members, err := rdb.SMembers(ctx, "presence:online_users").Result()
			if err != nil {
				return false
			}
			for _, raw := range members {
				if raw == "9" {
					return false
				}
			}
			return true
		}, time.Second, 10*time.Millisecond)
	})
}
