// pkg/notify/notify.go
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event names carried on the order events topic.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderEdited        = "order.edited"
)

// OrderEvent is the payload published after an order state change commits.
type OrderEvent struct {
	Event      string          `json:"event"`
	OrderID    uuid.UUID       `json:"orderId"`
	OrderCode  string          `json:"orderCode"`
	CustomerID uuid.UUID       `json:"customerId"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publisher delivers order events to interested consumers. Publishing is
// best effort: implementations must never block order settlement and must
// never surface delivery failures to callers.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent)
	Close() error
}

// Noop discards every event. Used when the events topic is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) {}

func (Noop) Close() error { return nil }
