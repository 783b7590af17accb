package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/tair/shopify-sync/internal/catalog/domain"
	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/kafka"
)

type sweepEventRepo struct {
	mu     sync.Mutex
	nextID uint
	events map[uint]*domain.Event
}

func newSweepEventRepo() *sweepEventRepo {
	return &sweepEventRepo{events: make(map[uint]*domain.Event)}
}

func (r *sweepEventRepo) Create(event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *sweepEventRepo) FindByID(id uint) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	clone := *event
	return &clone, nil
}

func (r *sweepEventRepo) FindAll(domain.EventFilter, int, int) ([]domain.Event, error) {
	return nil, nil
}

func (r *sweepEventRepo) MarkProcessing(id uint) error  { return nil }
func (r *sweepEventRepo) MarkCompleted(id uint) error   { return nil }
func (r *sweepEventRepo) MarkFailed(uint, string) error { return nil }
func (r *sweepEventRepo) Requeue(id uint) error         { return nil }

func (r *sweepEventRepo) DeleteCompletedBefore(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, event := range r.events {
		if event.Status == domain.StatusCompleted && event.CreatedAt.Before(cutoff) {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *sweepEventRepo) ResetStuckProcessing(cutoff time.Time) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reclaimed []domain.Event
	for _, event := range r.events {
		if event.Status == domain.StatusProcessing && event.UpdatedAt.Before(cutoff) {
			event.Status = domain.StatusPending
			event.RetryCount++
			reclaimed = append(reclaimed, *event)
		}
	}
	return reclaimed, nil
}

type sweepProductRepo struct {
	mu   sync.Mutex
	logs []catalogdomain.InventoryLog
}

func (r *sweepProductRepo) Create(*catalogdomain.Product) error { return nil }

func (r *sweepProductRepo) FindByID(uint) (*catalogdomain.Product, error) {
	return nil, catalogdomain.ErrProductNotFound
}

func (r *sweepProductRepo) FindBySKU(string) (*catalogdomain.Product, error) {
	return nil, catalogdomain.ErrProductNotFound
}

func (r *sweepProductRepo) UpdateInventoryBySKU(context.Context, string, int, string) (*catalogdomain.InventoryChange, error) {
	return nil, catalogdomain.ErrProductNotFound
}

func (r *sweepProductRepo) FindLogsByProductID(uint, int, int) ([]catalogdomain.InventoryLog, error) {
	return nil, nil
}

func (r *sweepProductRepo) DeleteLogsBefore(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []catalogdomain.InventoryLog
	var deleted int64
	for _, l := range r.logs {
		if l.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return deleted, nil
}

type sweepQueue struct {
	mu        sync.Mutex
	published []kafka.WebhookQueuedEvent
}

func (q *sweepQueue) PublishWebhookQueued(ctx context.Context, event kafka.WebhookQueuedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, event)
	return nil
}

func TestSweepOnceReclaimsStuckEvents(t *testing.T) {
	events := newSweepEventRepo()
	products := &sweepProductRepo{}
	queue := &sweepQueue{}

	stuck := &domain.Event{
		EventType:  domain.EventInventoryUpdate,
		Status:     domain.StatusProcessing,
		RetryCount: 1,
		UpdatedAt:  time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, events.Create(stuck))

	fresh := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Status:    domain.StatusProcessing,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, events.Create(fresh))

	NewSweeper(events, products, queue).SweepOnce(context.Background())

	reclaimed, err := events.FindByID(stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, reclaimed.Status)
	assert.Equal(t, 2, reclaimed.RetryCount)

	untouched, err := events.FindByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, untouched.Status)

	require.Len(t, queue.published, 1)
	assert.Equal(t, stuck.ID, queue.published[0].WebhookEventID)
	// Redelivery resumes where the record left off so the retry cap still holds.
	assert.Equal(t, 2, queue.published[0].Attempt)
}

func TestSweepOncePrunesOldCompletedEvents(t *testing.T) {
	events := newSweepEventRepo()
	queue := &sweepQueue{}

	old := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Status:    domain.StatusCompleted,
		CreatedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	require.NoError(t, events.Create(old))

	recent := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Status:    domain.StatusCompleted,
		CreatedAt: time.Now().Add(-1 * 24 * time.Hour),
	}
	require.NoError(t, events.Create(recent))

	oldFailed := &domain.Event{
		EventType: domain.EventInventoryUpdate,
		Status:    domain.StatusFailed,
		CreatedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	require.NoError(t, events.Create(oldFailed))

	NewSweeper(events, &sweepProductRepo{}, queue).SweepOnce(context.Background())

	_, err := events.FindByID(old.ID)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	_, err = events.FindByID(recent.ID)
	assert.NoError(t, err)

	// Failed events are kept for operator-triggered retries regardless of age.
	_, err = events.FindByID(oldFailed.ID)
	assert.NoError(t, err)
}

func TestSweepOncePrunesOldInventoryLogs(t *testing.T) {
	events := newSweepEventRepo()
	products := &sweepProductRepo{
		logs: []catalogdomain.InventoryLog{
			{ProductID: 1, Timestamp: time.Now().Add(-100 * 24 * time.Hour)},
			{ProductID: 1, Timestamp: time.Now().Add(-1 * 24 * time.Hour)},
		},
	}

	NewSweeper(events, products, &sweepQueue{}).SweepOnce(context.Background())

	products.mu.Lock()
	defer products.mu.Unlock()
	require.Len(t, products.logs, 1)
	assert.True(t, products.logs[0].Timestamp.After(time.Now().Add(-2*24*time.Hour)))
}
