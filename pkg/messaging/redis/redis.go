package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/pharmacy-api/pkg/circuitbreaker"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging"
)

// RedisBroker rides on Redis pub/sub. Delivery is at most once: a message
// published while no subscriber is connected, or whose handler fails, is gone.
type RedisBroker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	prefix string
	logger zerolog.Logger
}

type Config struct {
	URL           string
	ChannelPrefix string
	MaxRetries    int
	RetryBackoff  time.Duration
	PoolSize      int
	MinIdleConns  int
}

func NewRedisBroker(ctx context.Context, config Config, logger zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newBroker(client, config.ChannelPrefix, logger), nil
}

func newBroker(client *redis.Client, prefix string, logger zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		client: client,
		prefix: prefix,
		logger: logger,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "redis-broker",
			MaxFailures: 5,
			Interval:    10 * time.Second,
			Timeout:     5 * time.Second,
			OnStateChange: func(name, from, to string) {
				logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("Circuit breaker state changed")
			},
		}),
	}
}

func (b *RedisBroker) channel(topic string) string {
	return b.prefix + topic
}

func (b *RedisBroker) Publish(ctx context.Context, msg *messaging.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.cb.Execute(func() error {
		return b.client.Publish(ctx, b.channel(msg.Type), payload).Err()
	})
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string, h messaging.Handler) error {
	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg messaging.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.logger.Error().Err(err).Str("channel", raw.Channel).Msg("Dropping malformed message")
					continue
				}
				// Pub/sub has no redelivery; failures are logged only.
				if err := h(ctx, &msg); err != nil {
					b.logger.Error().Err(err).Str("event_type", msg.Type).Str("event_id", msg.ID.String()).Msg("Message handler failed")
				}
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
