package enums

import "fmt"

// VoucherKind selects how a voucher's discount value is interpreted.
type VoucherKind string

const (
	VoucherKindPercentage  VoucherKind = "percentage"
	VoucherKindFixedAmount VoucherKind = "fixed_amount"
)

var validVoucherKinds = []VoucherKind{
	VoucherKindPercentage,
	VoucherKindFixedAmount,
}

// String implements fmt.Stringer.
func (k VoucherKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known VoucherKind.
func (k VoucherKind) IsValid() bool {
	for _, candidate := range validVoucherKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseVoucherKind converts raw input into a VoucherKind.
func ParseVoucherKind(value string) (VoucherKind, error) {
	for _, candidate := range validVoucherKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher kind %q", value)
}

// VoucherStatus gates whether a voucher may be redeemed.
type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusInactive VoucherStatus = "inactive"
)

// String implements fmt.Stringer.
func (s VoucherStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known VoucherStatus.
func (s VoucherStatus) IsValid() bool {
	return s == VoucherStatusActive || s == VoucherStatusInactive
}
