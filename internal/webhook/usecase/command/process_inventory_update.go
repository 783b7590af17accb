package command

import (
	"context"
	"fmt"

	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/processor"
)

// ProcessInventoryUpdateCommand carries an already-validated inventory
// payload taken from the dedicated synchronous endpoint
type ProcessInventoryUpdateCommand struct {
	Payload domain.Payload
	Source  string
}

// ProcessInventoryUpdateHandler records the event and processes it inline.
// Inventory correctness is latency-sensitive; the caller learns the verdict
// immediately instead of polling the events endpoint.
type ProcessInventoryUpdateHandler struct {
	events    domain.EventRepository
	processor *processor.Processor
}

// NewProcessInventoryUpdateHandler creates a new synchronous inventory update handler
func NewProcessInventoryUpdateHandler(events domain.EventRepository, proc *processor.Processor) *ProcessInventoryUpdateHandler {
	return &ProcessInventoryUpdateHandler{events: events, processor: proc}
}

// Handle executes the process inventory update command
func (h *ProcessInventoryUpdateHandler) Handle(ctx context.Context, cmd ProcessInventoryUpdateCommand) (processor.Result, error) {
	source := cmd.Source
	if source == "" {
		source = domain.DefaultSource
	}

	event := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Payload:   cmd.Payload,
		Status:    domain.StatusPending,
		Source:    source,
	}
	if err := h.events.Create(event); err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return h.processor.Process(ctx, event)
}
