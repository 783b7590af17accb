package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType identifies the kind of webhook event
type EventType string

const (
	EventInventoryUpdate EventType = "inventory_update"
	EventProductUpdate   EventType = "product_update"
	EventOrderCreated    EventType = "order_created"
)

// Status is the processing lifecycle state of a webhook event
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DefaultSource is the origin recorded for events received on the Shopify intake.
const DefaultSource = "shopify"

// ClassifyTopic maps a Shopify topic header to an event type using
// case-insensitive substring matching. Unrecognized topics fall back to
// inventory_update; this mirrors the upstream platform's routing and is
// deliberately left unchanged (order topics are misrouted the same way
// upstream does it).
func ClassifyTopic(topic string) EventType {
	lower := strings.ToLower(topic)
	switch {
	case strings.Contains(lower, "inventory"):
		return EventInventoryUpdate
	case strings.Contains(lower, "product"):
		return EventProductUpdate
	default:
		return EventInventoryUpdate
	}
}

// Payload is the opaque structured body delivered with a webhook.
// Stored as jsonb.
type Payload map[string]interface{}

// Value implements driver.Valuer for jsonb storage
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for jsonb storage
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported payload column type %T", value)
	}
}

// String returns the string value for key, if present
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer value for key, if present. JSON numbers decode
// as float64, so both forms are accepted.
func (p Payload) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// Event is the persisted record of a received webhook with lifecycle status.
// Created in pending on ingress, claimed by a worker (processing), and
// finished as completed or failed. Failed events may be requeued to pending.
type Event struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	EventType    EventType  `json:"event_type" gorm:"size:50;not null;index:idx_webhook_events_type_status,priority:1"`
	Payload      Payload    `json:"payload" gorm:"type:jsonb"`
	Status       Status     `json:"status" gorm:"size:20;not null;default:'pending';index:idx_webhook_events_type_status,priority:2"`
	Source       string     `json:"source" gorm:"size:100;not null;default:'shopify';index:idx_webhook_events_created_source,priority:2"`
	RetryCount   int        `json:"retry_count" gorm:"not null;default:0"`
	ErrorMessage string     `json:"error_message"`
	ProcessedAt  *time.Time `json:"processed_at"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index:idx_webhook_events_created_source,priority:1"`
	UpdatedAt    time.Time  `json:"-"`
}

// TableName specifies the table name
func (Event) TableName() string {
	return "webhook_events"
}

// ErrEventNotFound is returned when a webhook event id does not resolve.
var ErrEventNotFound = errors.New("webhook event not found")

// EventFilter narrows event listings. Zero values match everything.
type EventFilter struct {
	EventType EventType
	Status    Status
	Source    string
}

// EventRepository defines the contract for webhook event data access
type EventRepository interface {
	Create(event *Event) error
	FindByID(id uint) (*Event, error)
	// FindAll lists events newest first, optionally filtered.
	FindAll(filter EventFilter, limit, offset int) ([]Event, error)

	// Lifecycle transitions. MarkFailed and MarkCompleted also stamp
	// processed_at so failures stay observable through the list endpoint.
	MarkProcessing(id uint) error
	MarkCompleted(id uint) error
	MarkFailed(id uint, errorMessage string) error
	// Requeue resets a failed event to pending, increments retry_count and
	// clears the error message.
	Requeue(id uint) error

	// DeleteCompletedBefore removes completed events older than cutoff.
	DeleteCompletedBefore(cutoff time.Time) (int64, error)
	// ResetStuckProcessing returns events stuck in processing since before
	// cutoff to pending and reports which ones were reclaimed.
	ResetStuckProcessing(cutoff time.Time) ([]Event, error)
}
