package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minimartlabs/minimart-backend/pkg/logger"
)

// pendingExpirer is the slice of the orders service the expiry job needs.
type pendingExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

// OrderExpiryJobParams configure the pending-order expiry job.
type OrderExpiryJobParams struct {
	Logger     *logger.Logger
	Orders     pendingExpirer
	PendingTTL time.Duration
}

// NewOrderExpiryJob builds the job that cancels unconfirmed non-cash orders
// whose payment never arrived within the pending TTL. Cancellation returns
// the reserved stock to the catalog.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	return &orderExpiryJob{
		logg:       params.Logger,
		orders:     params.Orders,
		pendingTTL: params.PendingTTL,
		now:        time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg       *logger.Logger
	orders     pendingExpirer
	pendingTTL time.Duration
	now        func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	cancelled, err := j.orders.ExpirePending(ctx, cutoff)

	logCtx := j.logg.WithFields(ctx, map[string]any{"cancelled": cancelled})
	if err != nil {
		// Some orders may still have been cancelled before the failure.
		j.logg.Error(logCtx, "order expiry loop finished with errors", err)
		return fmt.Errorf("expire pending orders: %w", err)
	}
	j.logg.Info(logCtx, "order expiry loop complete")
	return nil
}
