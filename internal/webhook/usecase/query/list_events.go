package query

import (
	"fmt"

	"github.com/tair/shopify-sync/internal/webhook/domain"
)

// ListEventsQuery represents the query to list webhook events
type ListEventsQuery struct {
	EventType string
	Status    string
	Source    string
	Limit     int
	Offset    int
}

// ListEventsHandler handles list events query
type ListEventsHandler struct {
	events domain.EventRepository
}

// NewListEventsHandler creates a new list events handler
func NewListEventsHandler(events domain.EventRepository) *ListEventsHandler {
	return &ListEventsHandler{events: events}
}

// Handle executes the list events query, newest first
func (h *ListEventsHandler) Handle(q ListEventsQuery) ([]domain.Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	filter := domain.EventFilter{
		EventType: domain.EventType(q.EventType),
		Status:    domain.Status(q.Status),
		Source:    q.Source,
	}

	events, err := h.events.FindAll(filter, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return events, nil
}
