package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomKeys(t *testing.T) {
	assert.Equal(t, "ticket:7", TicketRoom(7))
	assert.Equal(t, "user:101", UserRoom(101))
	assert.Equal(t, "room:ticket:7", Channel(TicketRoom(7)))
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("ticket:7"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := &RedisPublisher{Client: client}
	err = p.Publish(ctx, "ticket:7", EventMessageNew, MessageEvent{
		ID:         3,
		TicketID:   7,
		SenderType: "admin",
		Text:       "Halo semua",
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var env struct {
			Event   string       `json:"event"`
			Payload MessageEvent `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, EventMessageNew, env.Event)
		assert.Equal(t, int64(7), env.Payload.TicketID)
		assert.Equal(t, "Halo semua", env.Payload.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received on room channel")
	}
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "ticket:1", EventMessageNew, nil))
}
