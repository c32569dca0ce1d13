package models

import (
	"time"

	"github.com/google/uuid"
)

// CartProductLine is a pending single-product quantity in a customer's cart.
// One row per (customer, product); the live catalog price applies at
// settlement time.
type CartProductLine struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_cart_product_lines_customer_product"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_product_lines_customer_product"`
	Quantity   int       `gorm:"column:quantity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
