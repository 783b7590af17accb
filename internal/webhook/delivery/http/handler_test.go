package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/tair/shopify-sync/internal/catalog/domain"
	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/verifier"
	"github.com/tair/shopify-sync/kafka"
)

type memEventRepo struct {
	mu     sync.Mutex
	nextID uint
	events map[uint]*domain.Event
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[uint]*domain.Event)}
}

func (r *memEventRepo) Create(event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	event.CreatedAt = time.Now()
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *memEventRepo) FindByID(id uint) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	clone := *event
	return &clone, nil
}

func (r *memEventRepo) FindAll(filter domain.EventFilter, limit, offset int) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, event := range r.events {
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		if filter.EventType != "" && event.EventType != filter.EventType {
			continue
		}
		out = append(out, *event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memEventRepo) MarkProcessing(id uint) error {
	return r.mutate(id, func(e *domain.Event) { e.Status = domain.StatusProcessing })
}

func (r *memEventRepo) MarkCompleted(id uint) error {
	return r.mutate(id, func(e *domain.Event) {
		now := time.Now()
		e.Status = domain.StatusCompleted
		e.ProcessedAt = &now
	})
}

func (r *memEventRepo) MarkFailed(id uint, errorMessage string) error {
	return r.mutate(id, func(e *domain.Event) {
		now := time.Now()
		e.Status = domain.StatusFailed
		e.ErrorMessage = errorMessage
		e.ProcessedAt = &now
	})
}

func (r *memEventRepo) Requeue(id uint) error {
	return r.mutate(id, func(e *domain.Event) {
		e.Status = domain.StatusPending
		e.RetryCount++
		e.ErrorMessage = ""
	})
}

func (r *memEventRepo) mutate(id uint, fn func(*domain.Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	fn(event)
	return nil
}

func (r *memEventRepo) DeleteCompletedBefore(cutoff time.Time) (int64, error) { return 0, nil }

func (r *memEventRepo) ResetStuckProcessing(cutoff time.Time) ([]domain.Event, error) {
	return nil, nil
}

func (r *memEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]*catalogdomain.Product
	logs     []catalogdomain.InventoryLog
}

func newMemProductRepo(products ...catalogdomain.Product) *memProductRepo {
	repo := &memProductRepo{products: make(map[string]*catalogdomain.Product)}
	for i := range products {
		p := products[i]
		repo.products[p.SKU] = &p
	}
	return repo
}

func (r *memProductRepo) Create(product *catalogdomain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.SKU] = product
	return nil
}

func (r *memProductRepo) FindByID(id uint) (*catalogdomain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			clone := *p
			return &clone, nil
		}
	}
	return nil, catalogdomain.ErrProductNotFound
}

func (r *memProductRepo) FindBySKU(sku string) (*catalogdomain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[sku]
	if !ok {
		return nil, catalogdomain.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memProductRepo) UpdateInventoryBySKU(ctx context.Context, sku string, quantity int, reason string) (*catalogdomain.InventoryChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[sku]
	if !ok {
		return nil, catalogdomain.ErrProductNotFound
	}
	old := product.InventoryQuantity
	product.InventoryQuantity = quantity
	r.logs = append(r.logs, catalogdomain.InventoryLog{
		ProductID:    product.ID,
		OldQuantity:  old,
		NewQuantity:  quantity,
		ChangeReason: reason,
		Timestamp:    time.Now(),
	})
	return &catalogdomain.InventoryChange{
		ProductID:   product.ID,
		SKU:         sku,
		OldQuantity: old,
		NewQuantity: quantity,
	}, nil
}

func (r *memProductRepo) FindLogsByProductID(productID uint, limit, offset int) ([]catalogdomain.InventoryLog, error) {
	return nil, nil
}

func (r *memProductRepo) DeleteLogsBefore(cutoff time.Time) (int64, error) { return 0, nil }

func (r *memProductRepo) logCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

type captureQueue struct {
	mu        sync.Mutex
	published []kafka.WebhookQueuedEvent
}

func (q *captureQueue) PublishWebhookQueued(ctx context.Context, event kafka.WebhookQueuedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, event)
	return nil
}

func (q *captureQueue) events() []kafka.WebhookQueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]kafka.WebhookQueuedEvent(nil), q.published...)
}

type fixture struct {
	router   *mux.Router
	events   *memEventRepo
	products *memProductRepo
	queue    *captureQueue
}

func newFixture(secret string) *fixture {
	events := newMemEventRepo()
	products := newMemProductRepo(catalogdomain.Product{
		ID:                1,
		Name:              "iPhone 14",
		SKU:               "IP14-128",
		Price:             799.99,
		InventoryQuantity: 50,
		IsActive:          true,
	})
	queue := &captureQueue{}

	handler := NewWebhookHandler(events, products, queue, verifier.New(secret), nil)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &fixture{router: router, events: events, products: products, queue: queue}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if len(rec.Body.Bytes()) > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func shopifySignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHandleInventoryUpdateSuccess(t *testing.T) {
	f := newFixture("")

	body := []byte(`{"inventory_item_id":"ii_1","location_id":"loc_1","available":30,"sku":"IP14-128"}`)
	rec, resp := f.do(t, http.MethodPost, "/webhooks/inventory-update/", body, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Inventory updated successfully", resp["message"])

	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "IP14-128", result["sku"])
	assert.Equal(t, float64(50), result["old_quantity"])
	assert.Equal(t, float64(30), result["new_quantity"])

	assert.Equal(t, 30, f.products.products["IP14-128"].InventoryQuantity)
	assert.Equal(t, 1, f.products.logCount())

	stored, err := f.events.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestHandleInventoryUpdateUnknownSKU(t *testing.T) {
	f := newFixture("")

	body := []byte(`{"inventory_item_id":"ii_1","location_id":"loc_1","available":10,"sku":"NOPE-404"}`)
	rec, resp := f.do(t, http.MethodPost, "/webhooks/inventory-update/", body, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["error"], "NOPE-404")
	assert.Equal(t, 0, f.products.logCount())

	// The attempt itself is still recorded, as failed.
	stored, err := f.events.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestHandleInventoryUpdateValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"empty object", `{}`, []string{"inventory_item_id", "location_id", "available"}},
		{"negative available", `{"inventory_item_id":"ii_1","location_id":"loc_1","available":-5}`, []string{"available"}},
		{"blank sku", `{"inventory_item_id":"ii_1","location_id":"loc_1","available":5,"sku":"  "}`, []string{"sku"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("")
			rec, resp := f.do(t, http.MethodPost, "/webhooks/inventory-update/", []byte(tt.body), nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			fieldErrors, ok := resp["errors"].(map[string]interface{})
			require.True(t, ok, rec.Body.String())
			for _, field := range tt.fields {
				assert.Contains(t, fieldErrors, field)
			}
			assert.Equal(t, 0, f.events.count(), "invalid requests are never persisted")
		})
	}
}

func TestHandleShopifyWebhookQueued(t *testing.T) {
	const secret = "test-secret"
	f := newFixture(secret)

	body := []byte(`{"sku":"IP14-128","available":30}`)
	rec, resp := f.do(t, http.MethodPost, "/webhooks/shopify/", body, map[string]string{
		HeaderTopic:         "inventory_levels/update",
		HeaderHmacSignature: shopifySignature(secret, body),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Webhook received and queued for processing", resp["message"])

	// Accepted means persisted and enqueued, not processed.
	stored, err := f.events.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, domain.EventInventoryUpdate, stored.EventType)
	assert.Equal(t, 50, f.products.products["IP14-128"].InventoryQuantity)

	published := f.queue.events()
	require.Len(t, published, 1)
	assert.Equal(t, uint(1), published[0].WebhookEventID)
	assert.Equal(t, 0, published[0].Attempt)
}

func TestHandleShopifyWebhookBadSignature(t *testing.T) {
	f := newFixture("test-secret")

	body := []byte(`{"sku":"IP14-128","available":30}`)
	rec, resp := f.do(t, http.MethodPost, "/webhooks/shopify/", body, map[string]string{
		HeaderTopic:         "inventory_levels/update",
		HeaderHmacSignature: shopifySignature("wrong-secret", body),
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid webhook signature", resp["error"])
	assert.Equal(t, 0, f.events.count())
	assert.Empty(t, f.queue.events())
}

func TestHandleShopifyWebhookInvalidJSON(t *testing.T) {
	f := newFixture("")

	rec, resp := f.do(t, http.MethodPost, "/webhooks/shopify/", []byte(`{not json`), map[string]string{
		HeaderTopic: "inventory_levels/update",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON payload", resp["error"])
	assert.Equal(t, 0, f.events.count())
}

func TestHandleShopifyWebhookTopicRouting(t *testing.T) {
	f := newFixture("")

	body := []byte(`{"product_id":"12345"}`)
	rec, _ := f.do(t, http.MethodPost, "/webhooks/shopify/", body, map[string]string{
		HeaderTopic: "products/update",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.events.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, domain.EventProductUpdate, stored.EventType)
}

func TestHandleListEvents(t *testing.T) {
	f := newFixture("")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.events.Create(&domain.Event{
			EventType: domain.EventInventoryUpdate,
			Status:    domain.StatusPending,
			Source:    domain.DefaultSource,
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/webhooks/events/", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var listed []domain.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 3)
	assert.Equal(t, uint(3), listed[0].ID, "newest first")
}

func TestHandleRetryEvent(t *testing.T) {
	f := newFixture("")

	failed := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Status:    domain.StatusPending,
		Source:    domain.DefaultSource,
	}
	require.NoError(t, f.events.Create(failed))
	require.NoError(t, f.events.MarkFailed(failed.ID, "max retries reached: timeout"))

	rec, resp := f.do(t, http.MethodPost, "/webhooks/events/1/retry/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Webhook queued for retry", resp["message"])

	stored, err := f.events.FindByID(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Empty(t, stored.ErrorMessage)

	published := f.queue.events()
	require.Len(t, published, 1)
	assert.Equal(t, 0, published[0].Attempt)
}

func TestHandleRetryEventNotFailed(t *testing.T) {
	f := newFixture("")

	completed := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Status:    domain.StatusPending,
		Source:    domain.DefaultSource,
	}
	require.NoError(t, f.events.Create(completed))
	require.NoError(t, f.events.MarkCompleted(completed.ID))

	rec, resp := f.do(t, http.MethodPost, "/webhooks/events/1/retry/", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only failed webhooks can be retried", resp["error"])

	stored, err := f.events.FindByID(completed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Empty(t, f.queue.events())
}

func TestHandleRetryEventNotFound(t *testing.T) {
	f := newFixture("")

	rec, resp := f.do(t, http.MethodPost, "/webhooks/events/999/retry/", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Webhook not found", resp["error"])
}

func TestHandleRetryEventInvalidID(t *testing.T) {
	f := newFixture("")

	rec, resp := f.do(t, http.MethodPost, "/webhooks/events/abc/retry/", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid webhook ID", resp["error"])
}
