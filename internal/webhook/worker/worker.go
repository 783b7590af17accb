// Package worker runs the asynchronous webhook processing pipeline: it pulls
// work items off the queue, invokes the processor, and decides redelivery.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/processor"
	"github.com/tair/shopify-sync/kafka"
	"github.com/tair/shopify-sync/pkg/logger"
)

// Queue is the enqueue side of the durable work queue. Satisfied by
// kafka.Publisher.
type Queue interface {
	PublishWebhookQueued(ctx context.Context, event kafka.WebhookQueuedEvent) error
}

// Retry policy: up to MaxRetries redeliveries on transient failures, with
// BaseRetryDelay doubled before each one (60s, 120s, 240s).
const (
	MaxRetries     = 3
	BaseRetryDelay = 60 * time.Second
)

// Scheduler re-enqueues webhook work items after an exponential backoff.
// It is driven by the Dispatcher; the processor itself never sees it.
type Scheduler struct {
	queue      Queue
	maxRetries int
	baseDelay  time.Duration

	// afterFunc is time.AfterFunc unless replaced in tests.
	afterFunc func(d time.Duration, f func())
}

// NewScheduler creates a scheduler with the standard retry policy
func NewScheduler(queue Queue) *Scheduler {
	return &Scheduler{
		queue:      queue,
		maxRetries: MaxRetries,
		baseDelay:  BaseRetryDelay,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// RetryDelay returns the backoff before retry attempt (1-based):
// baseDelay * 2^(attempt-1).
func (s *Scheduler) RetryDelay(attempt int) time.Duration {
	return s.baseDelay * (1 << (attempt - 1))
}

// ScheduleRetry arms a timer that republishes the work item for retry
// `attempt` after its backoff. The record stays in its failed state until the
// redelivery claims it again.
func (s *Scheduler) ScheduleRetry(webhookEventID uint, attempt int) {
	delay := s.RetryDelay(attempt)

	logger.Logger.Info().
		Uint("webhook_event_id", webhookEventID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("Scheduling webhook retry")

	s.afterFunc(delay, func() {
		// Detached from the original request; the retry runs on its own
		// context.
		ctx := context.Background()
		err := s.queue.PublishWebhookQueued(ctx, kafka.WebhookQueuedEvent{
			WebhookEventID: webhookEventID,
			Attempt:        attempt,
		})
		if err != nil {
			logger.Logger.Error().
				Err(err).
				Uint("webhook_event_id", webhookEventID).
				Int("attempt", attempt).
				Msg("Failed to republish webhook for retry")
		}
	})
}

// Dispatcher consumes webhook work items and reports outcomes: the processor
// decides success or failure, the dispatcher decides redelivery.
type Dispatcher struct {
	events    domain.EventRepository
	processor *processor.Processor
	scheduler *Scheduler
}

func NewDispatcher(events domain.EventRepository, proc *processor.Processor, scheduler *Scheduler) *Dispatcher {
	return &Dispatcher{
		events:    events,
		processor: proc,
		scheduler: scheduler,
	}
}

// Register attaches the dispatcher to the consumer's handler registry
func (d *Dispatcher) Register(consumer *kafka.Consumer) {
	consumer.RegisterHandler(kafka.EventTypeWebhookQueued, d.Handle)
}

// Handle processes one work item. Handlers are idempotent against repeated
// payload application, so at-least-once delivery is safe here. A nil return
// acknowledges the message; queue-level errors are never surfaced for
// processing failures since the scheduler owns redelivery.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.WebhookQueuedEvent) error {
	event, err := d.events.FindByID(msg.WebhookEventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			// Deleted between enqueue and delivery, likely by the retention
			// sweep. Drop silently.
			logger.Warn(ctx).
				Uint("webhook_event_id", msg.WebhookEventID).
				Int("attempt", msg.Attempt).
				Msg("Webhook event vanished before processing, dropping")
			return nil
		}
		return fmt.Errorf("failed to load webhook event %d: %w", msg.WebhookEventID, err)
	}

	_, procErr := d.processor.Process(ctx, event)
	if procErr == nil {
		recordOutcome(string(event.EventType), "completed")
		return nil
	}

	if domain.IsTerminal(procErr) {
		// Already marked failed by the processor; retrying cannot succeed.
		recordOutcome(string(event.EventType), "terminal_failure")
		return nil
	}

	if msg.Attempt >= d.scheduler.maxRetries {
		d.exhaust(ctx, msg.WebhookEventID, procErr)
		recordOutcome(string(event.EventType), "retries_exhausted")
		return nil
	}

	d.scheduler.ScheduleRetry(msg.WebhookEventID, msg.Attempt+1)
	recordOutcome(string(event.EventType), "retry_scheduled")
	return nil
}

// exhaust records the terminal verdict once the retry budget is spent,
// distinguishing it from the original handler error.
func (d *Dispatcher) exhaust(ctx context.Context, webhookEventID uint, procErr error) {
	message := fmt.Sprintf("max retries reached: %s", procErr.Error())
	if err := d.events.MarkFailed(webhookEventID, message); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			logger.Warn(ctx).
				Uint("webhook_event_id", webhookEventID).
				Msg("Webhook event vanished before exhaustion could be recorded")
			return
		}
		logger.Error(ctx).
			Err(err).
			Uint("webhook_event_id", webhookEventID).
			Msg("Failed to record retry exhaustion")
		return
	}

	logger.Error(ctx).
		Err(procErr).
		Uint("webhook_event_id", webhookEventID).
		Int("max_retries", d.scheduler.maxRetries).
		Msg("Webhook retries exhausted")
}
