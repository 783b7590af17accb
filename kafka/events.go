package kafka

import "time"

// WebhookQueuedEvent is the work item placed on the queue for each webhook
// delivery. Attempt counts the retries already consumed: 0 on first enqueue,
// then 1..MaxRetries as the scheduler redelivers.
type WebhookQueuedEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	WebhookEventID uint      `json:"webhook_event_id"`
	Attempt        int       `json:"attempt"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypeWebhookQueued = "webhook.queued"
)

// Kafka topics
const (
	TopicWebhookEvents = "webhook-events"
)
