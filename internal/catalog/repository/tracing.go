package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tair/shopify-sync/internal/catalog/domain"
)

var tracer = otel.Tracer("catalog-repository")

// GormProductRepositoryWithTracing wraps GormProductRepository with tracing
type GormProductRepositoryWithTracing struct {
	*GormProductRepository
}

// NewGormProductRepositoryWithTracing creates a new repository with tracing
func NewGormProductRepositoryWithTracing(db *gorm.DB) *GormProductRepositoryWithTracing {
	return &GormProductRepositoryWithTracing{
		GormProductRepository: NewGormProductRepository(db),
	}
}

// UpdateInventoryBySKU with tracing
func (r *GormProductRepositoryWithTracing) UpdateInventoryBySKU(ctx context.Context, sku string, quantity int, reason string) (*domain.InventoryChange, error) {
	ctx, span := tracer.Start(ctx, "repository.UpdateInventoryBySKU",
		trace.WithAttributes(
			attribute.String("product.sku", sku),
			attribute.Int("product.quantity", quantity),
		),
	)
	defer span.End()

	change, err := r.GormProductRepository.UpdateInventoryBySKU(ctx, sku, quantity, reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("product.id", int(change.ProductID)),
		attribute.Int("product.old_quantity", change.OldQuantity),
	)
	return change, nil
}

// FindBySKUWithContext finds a product by SKU with tracing
func (r *GormProductRepositoryWithTracing) FindBySKUWithContext(ctx context.Context, sku string) (*domain.Product, error) {
	_, span := tracer.Start(ctx, "repository.FindBySKU",
		trace.WithAttributes(
			attribute.String("product.sku", sku),
		),
	)
	defer span.End()

	product, err := r.GormProductRepository.FindBySKU(sku)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return product, nil
}
