package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel used when none is configured.
const DefaultChannel = "livefeed:changes"

// Redis publishes and receives change notifications over Redis pub/sub,
// so writers and stream handlers in other processes reach every hub.
type Redis struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedis creates a Redis transport on channel (DefaultChannel if empty).
func NewRedis(client redis.UniversalClient, channel string, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string {
	return r.channel
}

// Publish sends change to the channel.
func (r *Redis) Publish(ctx context.Context, change Change) error {
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and delivers decoded changes to fn until
// ctx is done or the subscription is closed. Undecodable payloads are logged
// and skipped.
func (r *Redis) Listen(ctx context.Context, fn func(Change)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			change, err := decodeChange(msg.Payload)
			if err != nil {
				r.logger.Warn("dropping undecodable change",
					"channel", r.channel,
					"error", err,
				)
				continue
			}
			fn(change)
		}
	}
}

func encodeChange(change Change) (string, error) {
	b, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	return string(b), nil
}

func decodeChange(payload string) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if change.Collection == "" {
		return Change{}, fmt.Errorf("decode change: missing collection")
	}
	return change, nil
}
