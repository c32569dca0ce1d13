package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherRedemption is the single source of truth for "this order used this
// voucher". At most one row exists per order.
type VoucherRedemption struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	VoucherID      uuid.UUID       `gorm:"column:voucher_id;type:uuid;not null;index"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_voucher_redemptions_order"`
	CustomerID     uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
