package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/pkg/logger"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging"
	"github.com/jwalitptl/pharmacy-api/pkg/metrics"
	"github.com/jwalitptl/pharmacy-api/pkg/repository"
)

const (
	purgeInterval = time.Hour
	maxBackoff    = time.Hour
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries publish attempts are made before an event is marked failed.
	MaxRetries   int
	RetryBackoff time.Duration
	Lease        time.Duration
	// Retention keeps processed events this long; 0 keeps them forever.
	Retention time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("batch size must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("poll interval must be greater than 0")
	case c.MaxRetries <= 0:
		return errors.New("max retries must be greater than 0")
	case c.RetryBackoff <= 0:
		return errors.New("retry backoff must be greater than 0")
	case c.Lease <= 0:
		return errors.New("lease must be greater than 0")
	}
	return nil
}

// OutboxProcessor publishes committed outbox events to the broker.
type OutboxProcessor struct {
	repo      repository.OutboxStore
	broker    messaging.Broker
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	lastPurge time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxStore,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox config: %w", err)
	}
	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "batch_size", p.config.BatchSize, "interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
			p.purge(ctx)
		}
	}
}

// ProcessBatch claims one batch and publishes it, returning how many events were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_pending_events", "success").Inc()

	published := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.NewMessage(event.ID, event.EventType, event.Payload, event.CreatedAt)
	pubErr := p.broker.Publish(ctx, msg)
	if pubErr == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		return nil
	}

	attempt := event.RetryCount + 1
	if attempt >= p.config.MaxRetries {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, pubErr.Error()); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		}
		return fmt.Errorf("giving up after %d attempts: %w", attempt, pubErr)
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.backoff(event.RetryCount))
	if err := p.repo.MarkRetry(ctx, event.ID, pubErr.Error(), retryAt); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
	return fmt.Errorf("publish attempt %d failed: %w", attempt, pubErr)
}

// backoff doubles RetryBackoff per previous attempt, capped at maxBackoff.
func (p *OutboxProcessor) backoff(retries int) time.Duration {
	d := p.config.RetryBackoff
	for i := 0; i < retries && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (p *OutboxProcessor) purge(ctx context.Context) {
	if p.config.Retention <= 0 || p.now().Sub(p.lastPurge) < purgeInterval {
		return
	}
	p.lastPurge = p.now()
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("purge_processed_events", "error").Inc()
		p.logger.Error(err, "Failed to purge processed events")
		return
	}
	p.metrics.DatabaseOperations.WithLabelValues("purge_processed_events", "success").Inc()
	if n > 0 {
		p.logger.Info("Purged processed outbox events", "count", n)
	}
}
