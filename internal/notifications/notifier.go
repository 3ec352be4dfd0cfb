package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notifier provides helpers to publish events into Redis channels.
// Every method is a no-op when Redis is unavailable, so a single-process
// deployment keeps working through the hub alone.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishRoom sends an event payload to a channel's room.
func (n *Notifier) PublishRoom(ctx context.Context, channelID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, RoomChannel(channelID), payload).Err()
}

// PublishUser sends an event payload directly to one user's clients.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartRoomSubscriber subscribes to room and user patterns and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartRoomSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "room:chan:*", "notify:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in RoomSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// RoomChannel derives the Redis channel name for a chat channel's room.
func RoomChannel(channelID uint) string {
	return "room:chan:" + strconv.FormatUint(uint64(channelID), 10)
}

// UserChannel derives the Redis channel name for direct user events.
func UserChannel(userID uint) string {
	return "notify:user:" + strconv.FormatUint(uint64(userID), 10)
}

// ParseSubscriberChannel splits an incoming pub/sub channel name into its
// kind ("room" or "user") and numeric ID.
func ParseSubscriberChannel(channel string) (kind string, id uint, err error) {
	var raw uint64
	if _, scanErr := fmt.Sscanf(channel, "room:chan:%d", &raw); scanErr == nil {
		return "room", uint(raw), nil
	}
	if _, scanErr := fmt.Sscanf(channel, "notify:user:%d", &raw); scanErr == nil {
		return "user", uint(raw), nil
	}
	return "", 0, fmt.Errorf("unrecognized channel format: %s", channel)
}
