package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minimartlabs/minimart-backend/pkg/db/models"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:             uuid.New(),
		Name:           "Instant Noodles",
		Code:           "SKU-" + uuid.NewString()[:8],
		Unit:           "pack",
		UnitPrice:      decimal.RequireFromString("3.50"),
		QuantityOnHand: qty,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestDecrementStockGuardsAgainstOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	product := seedProduct(t, db, 5)

	ok, err := repo.DecrementStock(ctx, product.ID, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !ok {
		t.Fatal("expected decrement within stock to succeed")
	}

	ok, err = repo.DecrementStock(ctx, product.ID, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if ok {
		t.Fatal("expected decrement past zero to be refused")
	}

	reloaded, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.QuantityOnHand != 2 {
		t.Fatalf("expected 2 on hand, got %d", reloaded.QuantityOnHand)
	}
}

func TestIncrementStockRestores(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	product := seedProduct(t, db, 1)

	if err := repo.IncrementStock(ctx, product.ID, 4); err != nil {
		t.Fatalf("increment: %v", err)
	}

	reloaded, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.QuantityOnHand != 5 {
		t.Fatalf("expected 5 on hand, got %d", reloaded.QuantityOnHand)
	}
}

func TestDecrementStockRejectsNonPositiveQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 5)

	_, err := repo.DecrementStock(context.Background(), product.ID, 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindByIDsReturnsKeyedMap(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	a := seedProduct(t, db, 5)
	b := seedProduct(t, db, 7)

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{a.ID, b.ID, uuid.New()})
	if err != nil {
		t.Fatalf("find by ids: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 products, got %d", len(found))
	}
	if found[a.ID] == nil || found[b.ID] == nil {
		t.Fatal("expected both seeded products keyed by id")
	}
}
