package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/pharmacy-api/pkg/circuitbreaker"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging"
)

type Config struct {
	URL      string
	Exchange string
	// QueuePrefix names the durable queue bound per topic: <prefix>.<topic>.
	QueuePrefix string
	Prefetch    int
}

// Broker publishes to a topic exchange keyed by event type. Consumers ack
// after the handler succeeds, so it is the driver to use when handlers must
// not lose messages.
type Broker struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	pubMu  sync.Mutex
	cfg    Config
	cb     *circuitbreaker.CircuitBreaker
	logger zerolog.Logger
}

func NewBroker(cfg Config, logger zerolog.Logger) (*Broker, error) {
	if cfg.Exchange == "" {
		cfg.Exchange = "pharmacy.events"
	}
	if cfg.QueuePrefix == "" {
		cfg.QueuePrefix = "pharmacy"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &Broker{
		conn:   conn,
		pubCh:  ch,
		cfg:    cfg,
		logger: logger,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "rabbitmq-broker",
			MaxFailures: 5,
			Interval:    10 * time.Second,
			Timeout:     5 * time.Second,
		}),
	}, nil
}

func (b *Broker) Publish(ctx context.Context, msg *messaging.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return b.cb.Execute(func() error {
		b.pubMu.Lock()
		defer b.pubMu.Unlock()
		return b.pubCh.PublishWithContext(ctx, b.cfg.Exchange, msg.Type, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID.String(),
			Type:         msg.Type,
			Timestamp:    msg.OccurredAt,
			Body:         body,
		})
	})
}

func (b *Broker) Subscribe(ctx context.Context, topic string, h messaging.Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to set qos: %w", err)
	}

	queue := fmt.Sprintf("%s.%s", b.cfg.QueuePrefix, topic)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, topic, b.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	go func() {
		defer ch.Close()
		for d := range deliveries {
			b.deliver(ctx, queue, d, h)
		}
	}()
	return nil
}

// deliver runs h and settles the delivery. A failed message is requeued once;
// a second failure dead-letters it (or drops it when the queue has no DLX).
func (b *Broker) deliver(ctx context.Context, queue string, d amqp.Delivery, h messaging.Handler) {
	var msg messaging.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		b.logger.Error().Err(err).Str("queue", queue).Msg("Rejecting malformed message")
		_ = d.Nack(false, false)
		return
	}
	if err := h(ctx, &msg); err != nil {
		requeue := !d.Redelivered
		b.logger.Error().Err(err).
			Str("event_type", msg.Type).
			Str("event_id", msg.ID.String()).
			Bool("requeue", requeue).
			Msg("Message handler failed")
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func (b *Broker) Close() error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	return b.conn.Close()
}
