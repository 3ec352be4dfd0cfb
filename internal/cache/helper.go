package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	channelListKey       = "channels:all"
	channelMembersPrefix = "channel:%d:members"
)

const (
	// ChannelListTTL bounds staleness of the cached channel directory.
	ChannelListTTL = 30 * time.Second
	// ChannelMembersTTL bounds staleness of cached member listings.
	ChannelMembersTTL = 30 * time.Second
)

// ChannelListKey returns the cache key for the channel directory.
func ChannelListKey() string {
	return channelListKey
}

// ChannelMembersKey returns the cache key for a channel's member listing.
func ChannelMembersKey(channelID uint) string {
	return fmt.Sprintf(channelMembersPrefix, channelID)
}

// Invalidate deletes a key, tolerating a missing client.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateChannel drops cached listings affected by a channel mutation.
func InvalidateChannel(ctx context.Context, channelID uint) {
	Invalidate(ctx, channelListKey)
	Invalidate(ctx, ChannelMembersKey(channelID))
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. fetch must write into dest.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err == nil && found {
		return nil
	}

	// Cache errors degrade to a direct fetch.
	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}
