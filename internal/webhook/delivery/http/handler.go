package http

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	catalogdomain "github.com/tair/shopify-sync/internal/catalog/domain"
	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/processor"
	"github.com/tair/shopify-sync/internal/webhook/usecase/command"
	"github.com/tair/shopify-sync/internal/webhook/usecase/query"
	"github.com/tair/shopify-sync/internal/webhook/verifier"
	"github.com/tair/shopify-sync/internal/webhook/worker"
	"github.com/tair/shopify-sync/pkg/logger"
)

// Shopify webhook headers
const (
	HeaderHmacSignature = "X-Shopify-Hmac-Sha256"
	HeaderTopic         = "X-Shopify-Topic"
)

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_service_requests_total",
			Help: "Total number of requests to webhook service",
		},
		[]string{"method", "endpoint", "status"},
	)
	requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_service_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	acceptedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_service_accepted_total",
			Help: "Webhook deliveries accepted at the ingress, by event type",
		},
		[]string{"event_type"},
	)
)

func init() {
	prometheus.MustRegister(requestCounter, requestLatency, acceptedCounter)
}

// WebhookHandler handles HTTP requests for the webhook pipeline using CQRS pattern
type WebhookHandler struct {
	// Command handlers
	receiveHandler *command.ReceiveWebhookHandler
	processHandler *command.ProcessInventoryUpdateHandler
	retryHandler   *command.RetryWebhookHandler

	// Query handlers
	listHandler *query.ListEventsHandler

	verifier *verifier.Verifier
	cache    *redis.Client
}

// NewWebhookHandler creates a new webhook handler (manual DI)
func NewWebhookHandler(
	events domain.EventRepository,
	products catalogdomain.ProductRepository,
	queue worker.Queue,
	v *verifier.Verifier,
	cache *redis.Client,
) *WebhookHandler {
	proc := processor.New(events, products)
	return NewWebhookHandlerWithDI(
		command.NewReceiveWebhookHandler(events, queue),
		command.NewProcessInventoryUpdateHandler(events, proc),
		command.NewRetryWebhookHandler(events, queue),
		query.NewListEventsHandler(events),
		v,
		cache,
	)
}

// NewWebhookHandlerWithDI creates a new webhook handler using dependency injection
func NewWebhookHandlerWithDI(
	receiveHandler *command.ReceiveWebhookHandler,
	processHandler *command.ProcessInventoryUpdateHandler,
	retryHandler *command.RetryWebhookHandler,
	listHandler *query.ListEventsHandler,
	v *verifier.Verifier,
	cache *redis.Client,
) *WebhookHandler {
	return &WebhookHandler{
		receiveHandler: receiveHandler,
		processHandler: processHandler,
		retryHandler:   retryHandler,
		listHandler:    listHandler,
		verifier:       v,
		cache:          cache,
	}
}

// HandleShopifyWebhook handles POST /webhooks/shopify/
//
// The signature is checked over the raw body before anything is persisted,
// so unauthenticated data never reaches storage.
func (h *WebhookHandler) HandleShopifyWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respond(w, r, "/webhooks/shopify/", start, http.StatusInternalServerError,
			map[string]string{"error": "Internal server error"})
		return
	}

	if !h.verifier.Verify(body, r.Header.Get(HeaderHmacSignature)) {
		logger.Warn(ctx).
			Str("remote_addr", r.RemoteAddr).
			Msg("Invalid webhook signature received")
		h.respond(w, r, "/webhooks/shopify/", start, http.StatusUnauthorized,
			map[string]string{"error": "Invalid webhook signature"})
		return
	}

	var payload domain.Payload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			h.respond(w, r, "/webhooks/shopify/", start, http.StatusBadRequest,
				map[string]string{"error": "Invalid JSON payload"})
			return
		}
	}

	event, err := h.receiveHandler.Handle(ctx, command.ReceiveWebhookCommand{
		Topic:   r.Header.Get(HeaderTopic),
		Payload: payload,
		Source:  domain.DefaultSource,
	})
	if err != nil {
		// Never leak internal detail to unauthenticated callers.
		logger.Error(ctx).Err(err).Msg("Error processing webhook")
		h.respond(w, r, "/webhooks/shopify/", start, http.StatusInternalServerError,
			map[string]string{"error": "Internal server error"})
		return
	}

	acceptedCounter.WithLabelValues(string(event.EventType)).Inc()
	logger.Info(ctx).
		Uint("webhook_event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Msg("Received and queued webhook")

	h.respond(w, r, "/webhooks/shopify/", start, http.StatusOK,
		map[string]string{"message": "Webhook received and queued for processing"})
}

// inventoryUpdateRequest is the strict schema for the dedicated inventory path
type inventoryUpdateRequest struct {
	InventoryItemID *string `json:"inventory_item_id"`
	LocationID      *string `json:"location_id"`
	Available       *int    `json:"available"`
	SKU             *string `json:"sku"`
	ProductID       *string `json:"product_id"`
}

func (req *inventoryUpdateRequest) validate() map[string]string {
	fieldErrors := make(map[string]string)
	if req.InventoryItemID == nil || *req.InventoryItemID == "" {
		fieldErrors["inventory_item_id"] = "This field is required."
	}
	if req.LocationID == nil || *req.LocationID == "" {
		fieldErrors["location_id"] = "This field is required."
	}
	if req.Available == nil {
		fieldErrors["available"] = "This field is required."
	} else if *req.Available < 0 {
		fieldErrors["available"] = "Available quantity cannot be negative."
	}
	if req.SKU != nil && strings.TrimSpace(*req.SKU) == "" {
		fieldErrors["sku"] = "This field may not be blank."
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func (req *inventoryUpdateRequest) payload() domain.Payload {
	payload := domain.Payload{
		"inventory_item_id": *req.InventoryItemID,
		"location_id":       *req.LocationID,
		"available":         *req.Available,
	}
	if req.SKU != nil {
		payload["sku"] = *req.SKU
	}
	if req.ProductID != nil {
		payload["product_id"] = *req.ProductID
	}
	return payload
}

// HandleInventoryUpdate handles POST /webhooks/inventory-update/
//
// Inventory updates are validated strictly and processed inline so the caller
// gets an immediate verdict.
func (h *WebhookHandler) HandleInventoryUpdate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req inventoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, r, "/webhooks/inventory-update/", start, http.StatusBadRequest,
			map[string]string{"error": "Invalid request body"})
		return
	}

	if fieldErrors := req.validate(); fieldErrors != nil {
		h.respond(w, r, "/webhooks/inventory-update/", start, http.StatusBadRequest,
			map[string]interface{}{"errors": fieldErrors})
		return
	}

	result, err := h.processHandler.Handle(ctx, command.ProcessInventoryUpdateCommand{
		Payload: req.payload(),
		Source:  domain.DefaultSource,
	})
	if err != nil {
		h.respond(w, r, "/webhooks/inventory-update/", start, http.StatusBadRequest,
			map[string]string{"error": "Failed to process inventory update: " + err.Error()})
		return
	}

	acceptedCounter.WithLabelValues(string(domain.EventInventoryUpdate)).Inc()
	h.respond(w, r, "/webhooks/inventory-update/", start, http.StatusOK, map[string]interface{}{
		"message": "Inventory updated successfully",
		"result":  result,
	})
}

// HandleListEvents handles GET /webhooks/events/
func (h *WebhookHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, err := h.listHandler.Handle(query.ListEventsQuery{
		EventType: r.URL.Query().Get("event_type"),
		Status:    r.URL.Query().Get("status"),
		Source:    r.URL.Query().Get("source"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to list webhook events")
		h.respond(w, r, "/webhooks/events/", start, http.StatusInternalServerError,
			map[string]string{"error": "Failed to list webhook events"})
		return
	}

	h.respond(w, r, "/webhooks/events/", start, http.StatusOK, events)
}

// HandleRetryEvent handles POST /webhooks/events/{id}/retry/
func (h *WebhookHandler) HandleRetryEvent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		h.respond(w, r, "/webhooks/events/{id}/retry/", start, http.StatusBadRequest,
			map[string]string{"error": "Invalid webhook ID"})
		return
	}

	err = h.retryHandler.Handle(ctx, command.RetryWebhookCommand{EventID: uint(id)})
	switch {
	case err == nil:
		h.respond(w, r, "/webhooks/events/{id}/retry/", start, http.StatusOK,
			map[string]string{"message": "Webhook queued for retry"})
	case err == domain.ErrEventNotFound:
		h.respond(w, r, "/webhooks/events/{id}/retry/", start, http.StatusNotFound,
			map[string]string{"error": "Webhook not found"})
	case err == command.ErrEventNotRetryable:
		h.respond(w, r, "/webhooks/events/{id}/retry/", start, http.StatusBadRequest,
			map[string]string{"error": "Only failed webhooks can be retried"})
	default:
		logger.Error(ctx).Err(err).Uint64("webhook_event_id", id).Msg("Failed to retry webhook")
		h.respond(w, r, "/webhooks/events/{id}/retry/", start, http.StatusInternalServerError,
			map[string]string{"error": "Internal server error"})
	}
}

// RegisterRoutes registers all webhook routes
func (h *WebhookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/shopify/", h.HandleShopifyWebhook).Methods("POST")
	router.HandleFunc("/webhooks/inventory-update/", h.HandleInventoryUpdate).Methods("POST")
	router.Handle("/webhooks/events/",
		CacheMiddleware(h.cache, DefaultCacheTTL)(http.HandlerFunc(h.HandleListEvents))).Methods("GET")
	router.HandleFunc("/webhooks/events/{id}/retry/", h.HandleRetryEvent).Methods("POST")
}

// RegisterHealthCheck registers health check endpoint
func (h *WebhookHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Database unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Webhook service is healthy"})
	}).Methods("GET")
}

func (h *WebhookHandler) respond(w http.ResponseWriter, r *http.Request, endpoint string, start time.Time, status int, payload interface{}) {
	requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	requestLatency.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	respondJSON(w, status, payload)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
