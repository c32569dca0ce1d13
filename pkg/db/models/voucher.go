package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minimartlabs/minimart-backend/pkg/enums"
)

// Voucher is a discount code with a bounded usage counter. UsedCount may only
// grow through the settlement engine's conditional increment, which enforces
// used_count < usage_limit.
type Voucher struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;uniqueIndex:ux_vouchers_code;not null"`
	DiscountKind  enums.VoucherKind  `gorm:"column:discount_kind;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderValue *decimal.Decimal   `gorm:"column:min_order_value;type:numeric(12,2)"`
	MaxDiscount   *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)"`
	UsageLimit    int                `gorm:"column:usage_limit;not null"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0"`
	ValidFrom     time.Time          `gorm:"column:valid_from;not null"`
	ValidTo       time.Time          `gorm:"column:valid_to;not null"`
	Status        enums.VoucherStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
