// Package processor drives webhook events through their processing state
// machine and produces the inventory mutations they describe.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	catalogdomain "github.com/tair/shopify-sync/internal/catalog/domain"
	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/pkg/logger"
)

// ChangeReason is recorded on every audit row written by the webhook pipeline.
const ChangeReason = "Shopify webhook update"

// Result is the handler outcome returned to synchronous callers
type Result map[string]interface{}

// Processor dispatches a typed webhook event to its handler and enforces the
// pending -> processing -> completed|failed state machine. Constructed once at
// startup and shared read-only across workers.
type Processor struct {
	events   domain.EventRepository
	products catalogdomain.ProductRepository
}

func New(events domain.EventRepository, products catalogdomain.ProductRepository) *Processor {
	return &Processor{events: events, products: products}
}

// Process runs one event through the state machine. The record is marked
// processing before dispatch, then completed or failed depending on the
// handler outcome. The handler error is recorded on the event and returned to
// the caller, which owns the retry decision.
func (p *Processor) Process(ctx context.Context, event *domain.Event) (Result, error) {
	if err := p.events.MarkProcessing(event.ID); err != nil {
		return nil, fmt.Errorf("failed to claim webhook event %d: %w", event.ID, err)
	}

	result, err := p.dispatch(ctx, event)
	if err != nil {
		if markErr := p.events.MarkFailed(event.ID, err.Error()); markErr != nil {
			logger.Error(ctx).
				Err(markErr).
				Uint("webhook_event_id", event.ID).
				Msg("Failed to record webhook failure")
		}
		logger.Error(ctx).
			Err(err).
			Uint("webhook_event_id", event.ID).
			Str("event_type", string(event.EventType)).
			Bool("terminal", domain.IsTerminal(err)).
			Msg("Failed to process webhook")
		return nil, err
	}

	if err := p.events.MarkCompleted(event.ID); err != nil {
		return nil, fmt.Errorf("failed to complete webhook event %d: %w", event.ID, err)
	}

	logger.Info(ctx).
		Uint("webhook_event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Msg("Successfully processed webhook")
	return result, nil
}

// dispatch routes by event type. The variant set is closed; anything outside
// it is a permanent classification error, failed immediately and never
// retried.
func (p *Processor) dispatch(ctx context.Context, event *domain.Event) (Result, error) {
	switch event.EventType {
	case domain.EventInventoryUpdate:
		return p.processInventoryUpdate(ctx, event.Payload)
	case domain.EventProductUpdate:
		return p.processProductUpdate(ctx, event.Payload)
	default:
		return nil, domain.Terminal(fmt.Errorf("%w: %s", domain.ErrUnsupportedEventType, event.EventType))
	}
}

// processInventoryUpdate applies an absolute inventory level to the product
// identified by the payload's SKU. Re-applying the same payload is idempotent
// by construction: the quantity is absolute, not incremental.
func (p *Processor) processInventoryUpdate(ctx context.Context, payload domain.Payload) (Result, error) {
	sku, _ := payload.String("sku")
	if strings.TrimSpace(sku) == "" {
		return nil, domain.Terminal(errors.New("SKU is required for inventory update"))
	}

	// Upstream validation is re-checked here; the processor does not trust
	// the ingress path blindly.
	available, ok := payload.Int("available")
	if !ok {
		available = 0
	}
	if available < 0 {
		return nil, domain.Terminal(errors.New("available quantity cannot be negative"))
	}

	change, err := p.products.UpdateInventoryBySKU(ctx, sku, available, ChangeReason)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrProductNotFound) {
			// Webhook updates never create products.
			logger.Warn(ctx).
				Str("sku", sku).
				Msg("Product not found for inventory update")
			return nil, domain.Terminal(fmt.Errorf("product with SKU %s not found", sku))
		}
		return nil, fmt.Errorf("failed to update inventory for %s: %w", sku, err)
	}

	logger.Info(ctx).
		Str("sku", sku).
		Int("old_quantity", change.OldQuantity).
		Int("new_quantity", change.NewQuantity).
		Msg("Updated inventory from webhook")

	return Result{
		"product_id":   change.ProductID,
		"sku":          change.SKU,
		"old_quantity": change.OldQuantity,
		"new_quantity": change.NewQuantity,
	}, nil
}

// processProductUpdate acknowledges a product update. Extension point; the
// current behavior is a logged pass-through.
func (p *Processor) processProductUpdate(ctx context.Context, payload domain.Payload) (Result, error) {
	productID, ok := payload["product_id"]
	if !ok || productID == nil || productID == "" {
		return nil, domain.Terminal(errors.New("product ID is required for product update"))
	}

	logger.Info(ctx).
		Interface("product_id", productID).
		Msg("Processed product update")

	return Result{
		"product_id": productID,
		"status":     "updated",
	}, nil
}
