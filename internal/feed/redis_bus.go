package feed

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus publishes events on a Redis pub/sub channel so that every server
// instance subscribed to it refreshes its local subscribers.
type RedisBus struct {
	client  *redis.Client
	channel string
}

// NewRedisBus returns a bus on channel. The bus owns client and closes it
// on Close.
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

// Publish encodes ev as JSON and publishes it.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Listen subscribes to the channel and waits for Redis to confirm the
// subscription before returning.
func (b *RedisBus) Listen(ctx context.Context) (<-chan Event, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := decodeEvent(m.Payload)
				if err != nil {
					log.Warn().Err(err).Str("channel", m.Channel).Msg("feed: dropping malformed event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying client.
func (b *RedisBus) Close() error { return b.client.Close() }

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Key == "" {
		return Event{}, fmt.Errorf("feed event without key")
	}
	return ev, nil
}
