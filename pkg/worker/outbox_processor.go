package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/pkg/logger"
	"github.com/jwalitptl/homevisit-api/pkg/messaging"
	"github.com/jwalitptl/homevisit-api/pkg/metrics"
)

// OutboxStore is the slice of the outbox repository the relay needs.
type OutboxStore interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Channel is where every envelope is published.
	Channel string
	// MaxRetries parks an event as FAILED after that many failed polls.
	// Zero retries forever.
	MaxRetries int
	// Retention purges processed rows older than this. Zero keeps them.
	Retention time.Duration
}

// OutboxProcessor relays outbox rows to the broker at least once.
type OutboxProcessor struct {
	repo    OutboxStore
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOutboxProcessor panics on an invalid config. m may be nil.
func NewOutboxProcessor(
	repo OutboxStore,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.Channel == "" {
		panic("Channel must not be empty")
	}
	if log == nil {
		log = logger.Nop()
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log.With("component", "outbox_processor"),
		metrics: m,
		now:     time.Now,
	}
}

// count applies fn when the processor was given metrics.
func (p *OutboxProcessor) count(fn func(m *metrics.Metrics)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}

func (p *OutboxProcessor) countDB(op, status string) {
	p.count(func(m *metrics.Metrics) { m.DatabaseOperations.WithLabelValues(op, status).Inc() })
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.config.Channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
			p.purge(ctx)
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		p.countDB("get_pending_events", "error")
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.countDB("get_pending_events", "success")

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, p.config.Channel, event.Payload)
	})

	if err != nil {
		p.count(func(m *metrics.Metrics) { m.OutboxEventsFailed.Inc() })
		status := model.OutboxStatusPending
		if p.config.MaxRetries > 0 && event.RetryCount+1 >= p.config.MaxRetries {
			status = model.OutboxStatusFailed
		}
		errStr := err.Error()
		if updateErr := p.repo.UpdateStatus(ctx, event.ID, status, &errStr); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
		}
		return err
	}

	p.count(func(m *metrics.Metrics) { m.OutboxEventsProcessed.Inc() })
	if err := p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}

	return nil
}

func (p *OutboxProcessor) purge(ctx context.Context) {
	if p.config.Retention <= 0 {
		return
	}
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		p.countDB("purge_processed", "error")
		p.logger.Error(err, "Failed to purge processed events")
		return
	}
	p.countDB("purge_processed", "success")
	if n > 0 {
		p.logger.Debug("purged processed events", "rows", n)
	}
}

// retry stops early when ctx is cancelled.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
