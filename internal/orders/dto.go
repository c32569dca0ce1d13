package orders

import (
	"github.com/google/uuid"

	"github.com/minimartlabs/minimart-backend/pkg/enums"
)

// ShippingInfo carries the delivery fields every order must have. All three
// are required.
type ShippingInfo struct {
	DeliveryAddress string
	RecipientName   string
	RecipientPhone  string
}

// PlaceOrderInput captures everything needed to settle a cart into an order.
// An empty selection means "settle the whole cart".
type PlaceOrderInput struct {
	CustomerID             uuid.UUID
	Shipping               ShippingInfo
	PaymentMethod          enums.PaymentMethod
	Note                   *string
	VoucherCode            string
	SelectedProductLineIDs []uuid.UUID
	SelectedComboLineIDs   []uuid.UUID
}

// EditOrderInput overwrites the mutable shipping/payment/note fields of an
// order that has not shipped yet.
type EditOrderInput struct {
	Shipping      ShippingInfo
	PaymentMethod enums.PaymentMethod
	Note          *string
}
