package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSwaggerDocs registers Swagger documentation routes
// @Summary Swagger documentation
// @Description Swagger API documentation for Webhook Service
// @Tags Swagger
// @Success 200 {string} string "Swagger UI"
// @Router /swagger/ [get]
func RegisterSwaggerDocs(router *mux.Router, swaggerHandler http.Handler) {
	// Swagger UI
	router.PathPrefix("/swagger/").Handler(swaggerHandler)
}

// HandleShopifyWebhook godoc
// @Summary Receive a Shopify webhook
// @Description Verifies the HMAC signature, records the event and queues it for asynchronous processing
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Shopify-Hmac-Sha256 header string false "Base64 HMAC-SHA256 signature over the raw body"
// @Param X-Shopify-Topic header string false "Webhook topic"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /webhooks/shopify/ [post]
func (h *WebhookHandler) HandleShopifyWebhookDoc() {}

// HandleInventoryUpdate godoc
// @Summary Apply an inventory update synchronously
// @Description Validates the payload and applies the inventory level inline, returning the old and new quantities
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param request body object{inventory_item_id=string,location_id=string,available=int,sku=string,product_id=string} true "Inventory update"
// @Success 200 {object} object{message=string,result=object}
// @Failure 400 {object} object{error=string}
// @Router /webhooks/inventory-update/ [post]
func (h *WebhookHandler) HandleInventoryUpdateDoc() {}

// HandleListEvents godoc
// @Summary List webhook events
// @Description List received webhook events for monitoring, newest first
// @Tags Webhooks
// @Produce json
// @Param event_type query string false "Filter by event type"
// @Param status query string false "Filter by status"
// @Param source query string false "Filter by source"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {array} domain.Event
// @Router /webhooks/events/ [get]
func (h *WebhookHandler) HandleListEventsDoc() {}

// HandleRetryEvent godoc
// @Summary Retry a failed webhook event
// @Description Requeues a failed event for processing; only failed events are retryable
// @Tags Webhooks
// @Produce json
// @Param id path int true "Webhook event ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /webhooks/events/{id}/retry/ [post]
func (h *WebhookHandler) HandleRetryEventDoc() {}
