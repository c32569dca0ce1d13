package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minimartlabs/minimart-backend/pkg/db/models"
	"github.com/minimartlabs/minimart-backend/pkg/pagination"
)

// Repository persists orders, their lines and voucher redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateRedemption(ctx context.Context, redemption *models.VoucherRedemption) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForCustomer(ctx context.Context, ref string, customerID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	// TransitionStatus flips the status only when the row still holds the
	// expected current status. Returns false when another writer got there
	// first.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}
