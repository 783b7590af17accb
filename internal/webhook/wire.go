//go:build wireinject
// +build wireinject

package webhook

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	catalogdomain "github.com/tair/shopify-sync/internal/catalog/domain"
	catalogrepo "github.com/tair/shopify-sync/internal/catalog/repository"
	"github.com/tair/shopify-sync/internal/webhook/delivery/http"
	"github.com/tair/shopify-sync/internal/webhook/domain"
	"github.com/tair/shopify-sync/internal/webhook/processor"
	"github.com/tair/shopify-sync/internal/webhook/repository"
	"github.com/tair/shopify-sync/internal/webhook/usecase/command"
	"github.com/tair/shopify-sync/internal/webhook/usecase/query"
	"github.com/tair/shopify-sync/internal/webhook/verifier"
	"github.com/tair/shopify-sync/internal/webhook/worker"
	"github.com/tair/shopify-sync/kafka"
)

// ProvideEventRepository provides the webhook event repository
func ProvideEventRepository(db *gorm.DB) domain.EventRepository {
	return repository.NewGormEventRepository(db)
}

// ProvideProductRepository provides the catalog product repository with tracing
func ProvideProductRepository(db *gorm.DB) catalogdomain.ProductRepository {
	return catalogrepo.NewGormProductRepositoryWithTracing(db)
}

// ProvideQueue provides the work queue backed by the Kafka publisher
func ProvideQueue(publisher *kafka.Publisher) worker.Queue {
	return publisher
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideEventRepository,
	ProvideProductRepository,
)

var PipelineSet = wire.NewSet(
	ProvideQueue,
	processor.New,
	worker.NewScheduler,
)

// InitializeHTTPHandler initializes the HTTP handler with all dependencies
func InitializeHTTPHandler(db *gorm.DB, publisher *kafka.Publisher, v *verifier.Verifier, cache *redis.Client) (*http.WebhookHandler, error) {
	wire.Build(
		RepositorySet,
		PipelineSet,
		command.NewReceiveWebhookHandler,
		command.NewProcessInventoryUpdateHandler,
		command.NewRetryWebhookHandler,
		query.NewListEventsHandler,
		http.NewWebhookHandlerWithDI,
	)
	return nil, nil
}

// InitializeDispatcher initializes the background dispatch worker
func InitializeDispatcher(db *gorm.DB, publisher *kafka.Publisher) (*worker.Dispatcher, error) {
	wire.Build(
		RepositorySet,
		PipelineSet,
		worker.NewDispatcher,
	)
	return nil, nil
}
