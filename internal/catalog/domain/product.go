package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrProductNotFound is returned when no product matches the requested SKU.
var ErrProductNotFound = errors.New("product not found")

// Product represents the product entity
type Product struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	Name              string         `json:"name" gorm:"not null;index"`
	Description       string         `json:"description"`
	Price             float64        `json:"price" gorm:"not null"`
	SKU               string         `json:"sku" gorm:"uniqueIndex;not null"`
	InventoryQuantity int            `json:"inventory_quantity" gorm:"not null;default:0"`
	IsActive          bool           `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// IsLowStock reports whether the product is below the restock threshold
func (p *Product) IsLowStock() bool {
	return p.InventoryQuantity < 10
}

// InventoryLog is an append-only audit record of an inventory mutation.
// Rows are written exactly once per successful update and never modified;
// only the retention sweep removes them.
type InventoryLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ProductID    uint      `json:"product_id" gorm:"not null;index;constraint:OnDelete:CASCADE"`
	OldQuantity  int       `json:"old_quantity" gorm:"not null"`
	NewQuantity  int       `json:"new_quantity" gorm:"not null"`
	ChangeReason string    `json:"change_reason" gorm:"size:255"`
	Timestamp    time.Time `json:"timestamp" gorm:"autoCreateTime;index"`
}

// TableName specifies the table name
func (InventoryLog) TableName() string {
	return "inventory_logs"
}

// InventoryChange describes the outcome of an applied inventory update
type InventoryChange struct {
	ProductID   uint   `json:"product_id"`
	SKU         string `json:"sku"`
	OldQuantity int    `json:"old_quantity"`
	NewQuantity int    `json:"new_quantity"`
}

// ProductRepository defines the contract for product data access
type ProductRepository interface {
	Create(product *Product) error
	FindByID(id uint) (*Product, error)
	FindBySKU(sku string) (*Product, error)

	// UpdateInventoryBySKU sets the absolute inventory quantity for the
	// product identified by sku and appends one InventoryLog row, both in a
	// single transaction under a row lock. Returns ErrProductNotFound when
	// the SKU does not resolve.
	UpdateInventoryBySKU(ctx context.Context, sku string, quantity int, reason string) (*InventoryChange, error)

	FindLogsByProductID(productID uint, limit, offset int) ([]InventoryLog, error)
	DeleteLogsBefore(cutoff time.Time) (int64, error)
}
