package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/minimartlabs/minimart-backend/pkg/db/models"
	"github.com/minimartlabs/minimart-backend/pkg/enums"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// Line is one priced cart entry: a product line carrying its live catalog
// unit price, or a combo line carrying its frozen unit price.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal sums quantity times unit price across all lines, rounded to
// currency precision.
func Subtotal(lines []Line) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal.Round(2)
}

// VoucherDiscount validates the voucher against the subtotal and returns the
// discount amount. Checks run in a fixed order so the caller surfaces the
// most specific failure: expired, exhausted, inactive, minimum not met.
func VoucherDiscount(voucher *models.Voucher, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if voucher == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeVoucher, "voucher not found")
	}
	if now.After(voucher.ValidTo) {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeVoucher, "voucher %s has expired", voucher.Code)
	}
	if voucher.UsedCount >= voucher.UsageLimit {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeConflict, "voucher %s usage limit reached", voucher.Code)
	}
	if voucher.Status != enums.VoucherStatusActive {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeVoucher, "voucher %s is not active", voucher.Code)
	}
	if voucher.MinOrderValue != nil && subtotal.LessThan(*voucher.MinOrderValue) {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeVoucher,
			"order subtotal %s is below the voucher minimum %s",
			subtotal.StringFixed(2), voucher.MinOrderValue.StringFixed(2))
	}

	var discount decimal.Decimal
	switch voucher.DiscountKind {
	case enums.VoucherKindPercentage:
		discount = subtotal.Mul(voucher.DiscountValue).Div(oneHundred)
	case enums.VoucherKindFixedAmount:
		discount = voucher.DiscountValue
	default:
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeVoucher, "voucher %s has an unknown discount kind", voucher.Code)
	}

	if voucher.MaxDiscount != nil && discount.GreaterThan(*voucher.MaxDiscount) {
		discount = *voucher.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2), nil
}

// Total returns subtotal minus discount at currency precision, using
// round-half-up.
func Total(subtotal, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Round(2)
}
