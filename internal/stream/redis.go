package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisClient builds a client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// RedisBroadcaster publishes events on a Redis channel so that every server
// instance subscribed to it delivers them to its own dashboard clients.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

func NewRedisBroadcaster(client *redis.Client, channel string, hub *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		hub:     hub,
	}
}

// Publish sends ev to the shared channel. Local delivery happens when the
// message comes back through Run.
func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Run subscribes to the channel and forwards messages into the local hub
// until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	logger := log.With().Str("component", "redis_broadcaster").Str("channel", b.channel).Logger()

	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	logger.Info().Msg("subscribed to event channel")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down redis broadcaster")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.hub.Deliver([]byte(msg.Payload))
		}
	}
}
