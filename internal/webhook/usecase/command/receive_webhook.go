package command

import (
	"context"
	"fmt"

	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/worker"
	"github.com/tair/shopify-sync/kafka"
)

// ReceiveWebhookCommand represents a webhook delivery accepted at the ingress
type ReceiveWebhookCommand struct {
	Topic   string
	Payload domain.Payload
	Source  string
}

// ReceiveWebhookHandler persists the delivery and hands it to the background
// queue. The HTTP response never waits on processing.
type ReceiveWebhookHandler struct {
	events domain.EventRepository
	queue  worker.Queue
}

// NewReceiveWebhookHandler creates a new receive webhook handler
func NewReceiveWebhookHandler(events domain.EventRepository, queue worker.Queue) *ReceiveWebhookHandler {
	return &ReceiveWebhookHandler{events: events, queue: queue}
}

// Handle executes the receive webhook command
func (h *ReceiveWebhookHandler) Handle(ctx context.Context, cmd ReceiveWebhookCommand) (*domain.Event, error) {
	source := cmd.Source
	if source == "" {
		source = domain.DefaultSource
	}

	event := &domain.Event{
		EventType: domain.ClassifyTopic(cmd.Topic),
		Payload:   cmd.Payload,
		Status:    domain.StatusPending,
		Source:    source,
	}
	if err := h.events.Create(event); err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	if err := h.queue.PublishWebhookQueued(ctx, kafka.WebhookQueuedEvent{
		WebhookEventID: event.ID,
		Attempt:        0,
	}); err != nil {
		return nil, fmt.Errorf("failed to enqueue webhook event %d: %w", event.ID, err)
	}

	return event, nil
}
