// Package retention hosts the background sweeps that keep the webhook tables
// bounded: retention cleanup of old records and reclamation of work items
// stranded in processing by a crashed worker.
package retention

import (
	"context"
	"time"

	catalogdomain "github.com/tair/shopify-sync/internal/catalog/domain"
	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/worker"
	"github.com/tair/shopify-sync/kafka"
	"github.com/tair/shopify-sync/pkg/logger"
)

const (
	// Completed webhook events are kept for 30 days, audit logs for 90.
	WebhookRetention      = 30 * 24 * time.Hour
	InventoryLogRetention = 90 * 24 * time.Hour

	// VisibilityTimeout is how long a record may sit in processing before it
	// is considered abandoned and returned to pending.
	VisibilityTimeout = 5 * time.Minute

	DefaultInterval = time.Minute
)

// Sweeper periodically prunes old records and requeues stuck ones.
type Sweeper struct {
	events   domain.EventRepository
	products catalogdomain.ProductRepository
	queue    worker.Queue

	interval          time.Duration
	webhookRetention  time.Duration
	logRetention      time.Duration
	visibilityTimeout time.Duration
}

func NewSweeper(events domain.EventRepository, products catalogdomain.ProductRepository, queue worker.Queue) *Sweeper {
	return &Sweeper{
		events:            events,
		products:          products,
		queue:             queue,
		interval:          DefaultInterval,
		webhookRetention:  WebhookRetention,
		logRetention:      InventoryLogRetention,
		visibilityTimeout: VisibilityTimeout,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logger.Logger.Info().
			Dur("interval", s.interval).
			Dur("visibility_timeout", s.visibilityTimeout).
			Msg("Retention sweeper started")

		for {
			select {
			case <-ctx.Done():
				logger.Logger.Info().Msg("Retention sweeper stopped")
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// SweepOnce performs one full pass: reap stuck work, then prune by age
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.reapStuck(ctx)
	s.pruneWebhooks(ctx)
	s.pruneInventoryLogs(ctx)
}

// reapStuck returns abandoned processing records to pending and re-enqueues
// them. A crashed worker must not strand a record forever; the retry cap
// still bounds total attempts via retry_count.
func (s *Sweeper) reapStuck(ctx context.Context) {
	cutoff := time.Now().Add(-s.visibilityTimeout)
	stuck, err := s.events.ResetStuckProcessing(cutoff)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to reset stuck webhook events")
		return
	}

	for _, event := range stuck {
		logger.Warn(ctx).
			Uint("webhook_event_id", event.ID).
			Int("retry_count", event.RetryCount).
			Msg("Reclaimed webhook event stuck in processing")

		err := s.queue.PublishWebhookQueued(ctx, kafka.WebhookQueuedEvent{
			WebhookEventID: event.ID,
			Attempt:        event.RetryCount,
		})
		if err != nil {
			// Left in pending; the next sweep will not see it (it is no
			// longer processing), but an operator retry can still requeue it.
			logger.Error(ctx).
				Err(err).
				Uint("webhook_event_id", event.ID).
				Msg("Failed to re-enqueue reclaimed webhook event")
		}
	}
}

func (s *Sweeper) pruneWebhooks(ctx context.Context) {
	cutoff := time.Now().Add(-s.webhookRetention)
	deleted, err := s.events.DeleteCompletedBefore(cutoff)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to clean up old webhook events")
		return
	}
	if deleted > 0 {
		logger.Info(ctx).
			Int64("deleted", deleted).
			Msg("Cleaned up old webhook events")
	}
}

func (s *Sweeper) pruneInventoryLogs(ctx context.Context) {
	cutoff := time.Now().Add(-s.logRetention)
	deleted, err := s.products.DeleteLogsBefore(cutoff)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to clean up old inventory logs")
		return
	}
	if deleted > 0 {
		logger.Info(ctx).
			Int64("deleted", deleted).
			Msg("Cleaned up old inventory logs")
	}
}
