package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes room events on Redis pub/sub channels. The
// Socket.IO relay process subscribes to "room:*" and re-emits each event to
// the sockets joined to that room.
type RedisPublisher struct {
	Client *redis.Client
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (p *RedisPublisher) Publish(ctx context.Context, room, event string, payload any) error {
	b, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return p.Client.Publish(ctx, Channel(room), b).Err()
}

// Channel maps a room key to its pub/sub channel name.
func Channel(room string) string { return "room:" + room }
