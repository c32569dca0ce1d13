package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComboConstituent is the frozen snapshot of one product inside a combo cart
// line. Quantity and unit price are captured when the combo is added to the
// cart and are never re-read from the catalog at settlement time.
type ComboConstituent struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// ComboConstituents is stored as a jsonb column on cart combo lines.
type ComboConstituents []ComboConstituent
