package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/worker"
	"github.com/tair/shopify-sync/kafka"
)

// ErrEventNotRetryable is returned when a retry is requested for an event
// that is not in the failed state.
var ErrEventNotRetryable = errors.New("only failed webhooks can be retried")

// RetryWebhookCommand represents an operator-triggered retry
type RetryWebhookCommand struct {
	EventID uint
}

// RetryWebhookHandler requeues a failed event and puts it back on the queue
type RetryWebhookHandler struct {
	events domain.EventRepository
	queue  worker.Queue
}

// NewRetryWebhookHandler creates a new retry webhook handler
func NewRetryWebhookHandler(events domain.EventRepository, queue worker.Queue) *RetryWebhookHandler {
	return &RetryWebhookHandler{events: events, queue: queue}
}

// Handle executes the retry webhook command
func (h *RetryWebhookHandler) Handle(ctx context.Context, cmd RetryWebhookCommand) error {
	event, err := h.events.FindByID(cmd.EventID)
	if err != nil {
		return err
	}

	if event.Status != domain.StatusFailed {
		return ErrEventNotRetryable
	}

	// Back to pending with retry_count incremented and the error cleared.
	if err := h.events.Requeue(event.ID); err != nil {
		return fmt.Errorf("failed to requeue webhook event %d: %w", event.ID, err)
	}

	if err := h.queue.PublishWebhookQueued(ctx, kafka.WebhookQueuedEvent{
		WebhookEventID: event.ID,
		Attempt:        0,
	}); err != nil {
		return fmt.Errorf("failed to enqueue webhook event %d: %w", event.ID, err)
	}

	return nil
}
