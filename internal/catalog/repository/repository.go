package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/shopify-sync/internal/catalog/domain"
)

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Product{}, &domain.InventoryLog{})
}

func (r *GormProductRepository) Create(product *domain.Product) error {
	return r.db.Create(product).Error
}

func (r *GormProductRepository) FindByID(id uint) (*domain.Product, error) {
	var product domain.Product
	err := r.db.First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *GormProductRepository) FindBySKU(sku string) (*domain.Product, error) {
	var product domain.Product
	err := r.db.Where("sku = ?", sku).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

// UpdateInventoryBySKU applies an absolute inventory quantity under a
// SELECT ... FOR UPDATE row lock. The quantity write and the audit row
// commit together or not at all. The lock is held only for the span of
// the read-modify-write.
func (r *GormProductRepository) UpdateInventoryBySKU(ctx context.Context, sku string, quantity int, reason string) (*domain.InventoryChange, error) {
	var change *domain.InventoryChange

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sku = ?", sku).
			First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrProductNotFound
			}
			return err
		}

		oldQuantity := product.InventoryQuantity
		if err := tx.Model(&product).Update("inventory_quantity", quantity).Error; err != nil {
			return err
		}

		logEntry := domain.InventoryLog{
			ProductID:    product.ID,
			OldQuantity:  oldQuantity,
			NewQuantity:  quantity,
			ChangeReason: reason,
		}
		if err := tx.Create(&logEntry).Error; err != nil {
			return err
		}

		change = &domain.InventoryChange{
			ProductID:   product.ID,
			SKU:         product.SKU,
			OldQuantity: oldQuantity,
			NewQuantity: quantity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (r *GormProductRepository) FindLogsByProductID(productID uint, limit, offset int) ([]domain.InventoryLog, error) {
	var logs []domain.InventoryLog
	err := r.db.Where("product_id = ?", productID).
		Order("timestamp DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	return logs, err
}

func (r *GormProductRepository) DeleteLogsBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", cutoff).Delete(&domain.InventoryLog{})
	return result.RowsAffected, result.Error
}
