package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minimartlabs/minimart-backend/pkg/db/models"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
)

// Store exposes the cart operations the settlement engine consumes.
type Store interface {
	WithTx(tx *gorm.DB) Store
	ListProductLines(ctx context.Context, customerID uuid.UUID) ([]models.CartProductLine, error)
	ListComboLines(ctx context.Context, customerID uuid.UUID) ([]models.CartComboLine, error)
	DeleteProductLines(ctx context.Context, customerID uuid.UUID, ids []uuid.UUID) error
	DeleteComboLines(ctx context.Context, customerID uuid.UUID, ids []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart store bound to the provided DB.
func NewRepository(db *gorm.DB) Store {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListProductLines(ctx context.Context, customerID uuid.UUID) ([]models.CartProductLine, error) {
	var lines []models.CartProductLine
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart product lines")
	}
	return lines, nil
}

func (r *repository) ListComboLines(ctx context.Context, customerID uuid.UUID) ([]models.CartComboLine, error) {
	var lines []models.CartComboLine
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart combo lines")
	}
	return lines, nil
}

func (r *repository) DeleteProductLines(ctx context.Context, customerID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND id IN ?", customerID, ids).
		Delete(&models.CartProductLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart product lines")
	}
	return nil
}

func (r *repository) DeleteComboLines(ctx context.Context, customerID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND id IN ?", customerID, ids).
		Delete(&models.CartComboLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart combo lines")
	}
	return nil
}
