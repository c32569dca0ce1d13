package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minimartlabs/minimart-backend/pkg/types"
)

// CartComboLine is a pending combo quantity in a customer's cart. UnitPrice
// and Constituents are a frozen snapshot taken when the combo was added; the
// settlement engine never re-reads combo pricing from the catalog.
type CartComboLine struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID   uuid.UUID               `gorm:"column:customer_id;type:uuid;not null"`
	ComboName    string                  `gorm:"column:combo_name;not null"`
	UnitPrice    decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity     int                     `gorm:"column:quantity;not null"`
	Constituents types.ComboConstituents `gorm:"column:constituents;type:jsonb;serializer:json"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}
