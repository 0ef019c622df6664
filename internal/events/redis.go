package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub so several console replicas
// share attendance events.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus builds a bus on channel. The client stays owned by the caller.
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = "attendance:events"
	}
	return &RedisBus{client: client, channel: channel}
}

// Publish sends evt to every subscriber of the channel.
func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe opens a channel subscription. It returns once Redis confirmed it.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				evt, err := decode([]byte(msg.Payload))
				if err != nil {
					log.Printf("events: redis %s: %v", b.channel, err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; subscriptions end with their contexts.
func (b *RedisBus) Close() error { return nil }
