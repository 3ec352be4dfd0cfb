package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestParseSubscriberChannel(t *testing.T) {
	cases := []struct {
		channel  string
		kind     string
		id       uint
		hasError bool
	}{
		{"room:chan:42", "room", 42, false},
		{"notify:user:7", "user", 7, false},
		{"bogus:channel", "", 0, true},
		{"room:chan:abc", "", 0, true},
	}

	for _, tc := range cases {
		kind, id, err := ParseSubscriberChannel(tc.channel)
		if tc.hasError {
			assert.Error(t, err, tc.channel)
			continue
		}
		require.NoError(t, err, tc.channel)
		assert.Equal(t, tc.kind, kind)
		assert.Equal(t, tc.id, id)
	}
}

func TestNotifierNilRedis(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()

	assert.NoError(t, n.PublishRoom(ctx, 1, "payload"))
	assert.NoError(t, n.PublishUser(ctx, 1, "payload"))
	assert.NoError(t, n.StartRoomSubscriber(ctx, func(string, string) {
		t.Fatal("no messages expected without redis")
	}))
}

func TestNotifierRoundTrip(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan [2]string, 4)
	require.NoError(t, n.StartRoomSubscriber(ctx, func(channel, payload string) {
		received <- [2]string{channel, payload}
	}))

	// PSubscribe needs a moment to establish before publishes land.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, n.PublishRoom(ctx, 42, `{"type":"message"}`))
	require.NoError(t, n.PublishUser(ctx, 7, `{"type":"member_kicked"}`))

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			got[msg[0]] = msg[1]
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pub/sub delivery")
		}
	}

	assert.Equal(t, `{"type":"message"}`, got[RoomChannel(42)])
	assert.Equal(t, `{"type":"member_kicked"}`, got[UserChannel(7)])
}

func TestNotifierSubscriberPanicRecovery(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan string, 4)
	require.NoError(t, n.StartRoomSubscriber(ctx, func(channel, payload string) {
		calls <- payload
		if payload == "boom" {
			panic("handler exploded")
		}
	}))

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, n.PublishRoom(ctx, 1, "boom"))
	require.NoError(t, n.PublishRoom(ctx, 1, "after"))

	for _, want := range []string{"boom", "after"} {
		select {
		case got := <-calls:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber stopped after panic; wanted %q", want)
		}
	}
}
