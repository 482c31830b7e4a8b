package events

import (
	"context"

	"skillsync/internal/models"
	"skillsync/internal/redis"
)

// RedisPublisher fans events out over a redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.ResumeEvent) error {
	body, err := encode(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, body)
}

// Close leaves the shared redis client open; main owns it.
func (p *RedisPublisher) Close() error { return nil }
