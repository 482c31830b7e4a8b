// Package events announces resume changes to downstream services such as
// skill-gap analysis and learning-path generation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"skillsync/internal/config"
	"skillsync/internal/models"
	"skillsync/internal/redis"
)

type Publisher interface {
	Publish(ctx context.Context, event models.ResumeEvent) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.ResumeEvent) error { return nil }
func (Nop) Close() error                                      { return nil }

// New picks a publisher by cfg.Driver. An empty driver disables events.
func New(cfg config.EventsConfig, rc *redis.Client) (Publisher, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return Nop{}, nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("events driver redis requires a redis connection")
		}
		return NewRedisPublisher(rc, cfg.Channel), nil
	case "amqp", "rabbitmq":
		return DialAMQP(cfg.AMQPURL, cfg.Exchange)
	default:
		return nil, fmt.Errorf("unknown events driver: %s", cfg.Driver)
	}
}

func encode(event models.ResumeEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return body, nil
}

func routingKey(event models.ResumeEvent) string {
	return fmt.Sprintf("%s.%d", event.Type, event.UserID)
}
