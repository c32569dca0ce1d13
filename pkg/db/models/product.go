package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is the canonical catalog record. QuantityOnHand is mutated only
// through the settlement engine's conditional decrement/increment.
type Product struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name           string          `gorm:"column:name;not null"`
	Code           string          `gorm:"column:code;uniqueIndex:ux_products_code;not null"`
	Unit           string          `gorm:"column:unit;not null;default:'pcs'"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	QuantityOnHand int             `gorm:"column:quantity_on_hand;not null;default:0"`
	ImageURLs      pq.StringArray  `gorm:"column:image_urls;type:text[]"`
	IsActive       bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
