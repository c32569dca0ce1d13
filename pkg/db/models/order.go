package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minimartlabs/minimart-backend/pkg/enums"
)

// Order is the durable result of a settlement. Totals and lines are immutable
// once committed; only status, payment confirmation and the customer-editable
// shipping fields may change afterwards.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Code             string              `gorm:"column:code;uniqueIndex:ux_orders_code;not null"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Subtotal         decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount         decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	Total            decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	DeliveryAddress  string              `gorm:"column:delivery_address;not null"`
	RecipientName    string              `gorm:"column:recipient_name;not null"`
	RecipientPhone   string              `gorm:"column:recipient_phone;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentConfirmed bool                `gorm:"column:payment_confirmed;not null;default:false"`
	Status           enums.OrderStatus   `gorm:"column:status;not null;default:'pending_confirmation'"`
	Note             *string             `gorm:"column:note"`
	Lines            []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
