package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minimartlabs/minimart-backend/internal/cart"
	"github.com/minimartlabs/minimart-backend/internal/catalog"
	"github.com/minimartlabs/minimart-backend/internal/vouchers"
	"github.com/minimartlabs/minimart-backend/pkg/db/models"
	"github.com/minimartlabs/minimart-backend/pkg/enums"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
	"github.com/minimartlabs/minimart-backend/pkg/notify"
	"github.com/minimartlabs/minimart-backend/pkg/pagination"
	"github.com/minimartlabs/minimart-backend/pkg/types"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

type capturingSink struct {
	events []notify.OrderEvent
}

func (s *capturingSink) Publish(_ context.Context, event notify.OrderEvent) {
	s.events = append(s.events, event)
}

// racedVoucherStore simulates losing the conditional usage increment to a
// concurrent redemption after the advisory check already passed.
type racedVoucherStore struct {
	vouchers.Store
}

func (s racedVoucherStore) WithTx(tx *gorm.DB) vouchers.Store {
	return racedVoucherStore{Store: s.Store.WithTx(tx)}
}

func (s racedVoucherStore) IncrementUsage(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

func newEngine(t *testing.T, conn *gorm.DB, sink *capturingSink, voucherStore vouchers.Store) Service {
	t.Helper()
	if voucherStore == nil {
		voucherStore = vouchers.NewRepository(conn)
	}
	var pub publisher
	if sink != nil {
		pub = sink
	}
	svc, err := NewService(
		NewRepository(conn),
		catalog.NewRepository(conn),
		cart.NewRepository(conn),
		voucherStore,
		testTxRunner{db: conn},
		pub,
		nil,
		3,
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func seedCatalogProduct(t *testing.T, conn *gorm.DB, name, price string, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:           name,
		Code:           "SKU-" + uuid.NewString()[:8],
		Unit:           "pcs",
		UnitPrice:      dec(price),
		QuantityOnHand: qty,
		IsActive:       true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedCartProduct(t *testing.T, conn *gorm.DB, customerID, productID uuid.UUID, qty int) *models.CartProductLine {
	t.Helper()
	line := &models.CartProductLine{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   qty,
	}
	if err := conn.Create(line).Error; err != nil {
		t.Fatalf("seed cart product line: %v", err)
	}
	return line
}

func seedCartCombo(t *testing.T, conn *gorm.DB, customerID uuid.UUID, name, price string, qty int, constituents types.ComboConstituents) *models.CartComboLine {
	t.Helper()
	line := &models.CartComboLine{
		CustomerID:   customerID,
		ComboName:    name,
		UnitPrice:    dec(price),
		Quantity:     qty,
		Constituents: constituents,
	}
	if err := conn.Create(line).Error; err != nil {
		t.Fatalf("seed cart combo line: %v", err)
	}
	return line
}

func seedActiveVoucher(t *testing.T, conn *gorm.DB, kind enums.VoucherKind, value string, usageLimit, usedCount int) *models.Voucher {
	t.Helper()
	voucher := &models.Voucher{
		Code:          "SAVE-" + uuid.NewString()[:8],
		DiscountKind:  kind,
		DiscountValue: dec(value),
		UsageLimit:    usageLimit,
		UsedCount:     usedCount,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(24 * time.Hour),
		Status:        enums.VoucherStatusActive,
	}
	if err := conn.Create(voucher).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
	return voucher
}

func validPlaceInput(customerID uuid.UUID) PlaceOrderInput {
	return PlaceOrderInput{
		CustomerID: customerID,
		Shipping: ShippingInfo{
			DeliveryAddress: "45 Beach Road",
			RecipientName:   "Minh Le",
			RecipientPhone:  "0912345678",
		},
		PaymentMethod: enums.PaymentMethodCOD,
	}
}

func stockOf(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.QuantityOnHand
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := conn.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil {
		t.Fatalf("expected tagged error, got %v", err)
	}
	if pkgErr.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, pkgErr.Code(), err)
	}
	return pkgErr
}

func TestPlaceOrderSettlesCartWithComboExpansion(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	sink := &capturingSink{}
	svc := newEngine(t, conn, sink, nil)

	customerID := uuid.New()
	rice := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	sauce := seedCatalogProduct(t, conn, "Fish Sauce 500ml", "4.00", 5)
	seedCartProduct(t, conn, customerID, rice.ID, 2)
	seedCartCombo(t, conn, customerID, "Family Dinner Set", "15.00", 1, types.ComboConstituents{
		{ProductID: sauce.ID, ProductName: "Fish Sauce 500ml", Quantity: 3, UnitPrice: dec("4.00")},
	})

	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if !order.Subtotal.Equal(dec("25.00")) {
		t.Fatalf("expected subtotal 25.00, got %s", order.Subtotal)
	}
	if !order.Discount.Equal(decimal.Zero) {
		t.Fatalf("expected zero discount, got %s", order.Discount)
	}
	if !order.Total.Equal(dec("25.00")) {
		t.Fatalf("expected total 25.00, got %s", order.Total)
	}
	if order.Status != enums.OrderStatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation, got %s", order.Status)
	}
	if order.PaymentConfirmed {
		t.Fatal("payment must start unconfirmed even for cash on delivery")
	}
	if !strings.HasPrefix(order.Code, "ORD-") {
		t.Fatalf("unexpected order code %q", order.Code)
	}

	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(order.Lines))
	}
	var comboLine *models.OrderLine
	for i := range order.Lines {
		if order.Lines[i].ProductID == sauce.ID {
			comboLine = &order.Lines[i]
		}
	}
	if comboLine == nil {
		t.Fatal("combo constituent line missing")
	}
	if comboLine.Quantity != 3 {
		t.Fatalf("expected expanded quantity 3, got %d", comboLine.Quantity)
	}
	if comboLine.ProductName != "Fish Sauce 500ml (Family Dinner Set)" {
		t.Fatalf("unexpected combo line name %q", comboLine.ProductName)
	}
	if !comboLine.UnitPrice.Equal(dec("4.00")) {
		t.Fatalf("expected frozen constituent price 4.00, got %s", comboLine.UnitPrice)
	}

	if got := stockOf(t, conn, rice.ID); got != 8 {
		t.Fatalf("expected rice stock 8, got %d", got)
	}
	if got := stockOf(t, conn, sauce.ID); got != 2 {
		t.Fatalf("expected sauce stock 2, got %d", got)
	}

	// Cash on delivery consumes the cart.
	if n := countRows(t, conn, &models.CartProductLine{}); n != 0 {
		t.Fatalf("expected empty product cart, got %d rows", n)
	}
	if n := countRows(t, conn, &models.CartComboLine{}); n != 0 {
		t.Fatalf("expected empty combo cart, got %d rows", n)
	}

	if len(sink.events) != 1 || sink.events[0].Event != notify.EventOrderPlaced {
		t.Fatalf("expected one order.placed event, got %+v", sink.events)
	}
}

func TestPlaceOrderAppliesPercentageVoucher(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	rice := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	sauce := seedCatalogProduct(t, conn, "Fish Sauce 500ml", "4.00", 5)
	seedCartProduct(t, conn, customerID, rice.ID, 2)
	seedCartCombo(t, conn, customerID, "Family Dinner Set", "15.00", 1, types.ComboConstituents{
		{ProductID: sauce.ID, ProductName: "Fish Sauce 500ml", Quantity: 3, UnitPrice: dec("4.00")},
	})
	voucher := seedActiveVoucher(t, conn, enums.VoucherKindPercentage, "10", 5, 0)

	input := validPlaceInput(customerID)
	input.VoucherCode = voucher.Code
	order, err := svc.PlaceOrder(ctx, input)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if !order.Discount.Equal(dec("2.50")) {
		t.Fatalf("expected discount 2.50, got %s", order.Discount)
	}
	if !order.Total.Equal(dec("22.50")) {
		t.Fatalf("expected total 22.50, got %s", order.Total)
	}

	var reloaded models.Voucher
	if err := conn.First(&reloaded, "id = ?", voucher.ID).Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("expected used count 1, got %d", reloaded.UsedCount)
	}

	var redemption models.VoucherRedemption
	if err := conn.First(&redemption, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load redemption: %v", err)
	}
	if redemption.VoucherID != voucher.ID || redemption.CustomerID != customerID {
		t.Fatalf("unexpected redemption row %+v", redemption)
	}
	if !redemption.DiscountAmount.Equal(dec("2.50")) {
		t.Fatalf("expected redemption amount 2.50, got %s", redemption.DiscountAmount)
	}
}

func TestPlaceOrderInsufficientStockLeavesNoTrace(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Condensed Milk", "2.00", 5)
	seedCartProduct(t, conn, customerID, product.ID, 6)

	_, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	pkgErr := assertCode(t, err, pkgerrors.CodeConflict)
	if !strings.Contains(pkgErr.Message(), "Condensed Milk") || !strings.Contains(pkgErr.Message(), "5 available") {
		t.Fatalf("expected product and availability in message, got %q", pkgErr.Message())
	}

	if got := stockOf(t, conn, product.ID); got != 5 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	if n := countRows(t, conn, &models.Order{}); n != 0 {
		t.Fatalf("expected no orders, got %d", n)
	}
	if n := countRows(t, conn, &models.CartProductLine{}); n != 1 {
		t.Fatalf("cart must be preserved, got %d rows", n)
	}
}

func TestPlaceOrderVoucherRaceRollsBackEverything(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	raced := racedVoucherStore{Store: vouchers.NewRepository(conn)}
	svc := newEngine(t, conn, nil, raced)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Green Tea Box", "5.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 2)
	voucher := seedActiveVoucher(t, conn, enums.VoucherKindFixedAmount, "1.00", 1, 0)

	input := validPlaceInput(customerID)
	input.VoucherCode = voucher.Code
	_, err := svc.PlaceOrder(ctx, input)
	pkgErr := assertCode(t, err, pkgerrors.CodeConflict)
	if !strings.Contains(pkgErr.Message(), "exhausted") {
		t.Fatalf("expected exhaustion message, got %q", pkgErr.Message())
	}

	if n := countRows(t, conn, &models.Order{}); n != 0 {
		t.Fatalf("expected no orders after rollback, got %d", n)
	}
	if n := countRows(t, conn, &models.OrderLine{}); n != 0 {
		t.Fatalf("expected no order lines after rollback, got %d", n)
	}
	if n := countRows(t, conn, &models.VoucherRedemption{}); n != 0 {
		t.Fatalf("expected no redemptions after rollback, got %d", n)
	}
	if got := stockOf(t, conn, product.ID); got != 10 {
		t.Fatalf("stock must be untouched after rollback, got %d", got)
	}
}

func TestPlaceOrderPreRedemptionVoucherChecks(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Green Tea Box", "5.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 2)

	input := validPlaceInput(customerID)
	input.VoucherCode = "NO-SUCH-CODE"
	_, err := svc.PlaceOrder(ctx, input)
	assertCode(t, err, pkgerrors.CodeVoucher)

	spent := seedActiveVoucher(t, conn, enums.VoucherKindFixedAmount, "1.00", 1, 1)
	input.VoucherCode = spent.Code
	_, err = svc.PlaceOrder(ctx, input)
	assertCode(t, err, pkgerrors.CodeConflict)

	if n := countRows(t, conn, &models.Order{}); n != 0 {
		t.Fatalf("voucher failures must abort placement, got %d orders", n)
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newEngine(t, conn, nil, nil)

	_, err := svc.PlaceOrder(context.Background(), validPlaceInput(uuid.New()))
	pkgErr := assertCode(t, err, pkgerrors.CodeValidation)
	if !strings.Contains(pkgErr.Message(), "cart is empty") {
		t.Fatalf("unexpected message %q", pkgErr.Message())
	}
}

func TestPlaceOrderSelectionHandling(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	rice := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	noodles := seedCatalogProduct(t, conn, "Instant Noodles", "0.50", 40)
	selected := seedCartProduct(t, conn, customerID, rice.ID, 1)
	seedCartProduct(t, conn, customerID, noodles.ID, 10)

	// Selection referencing nothing in the cart.
	miss := validPlaceInput(customerID)
	miss.SelectedProductLineIDs = []uuid.UUID{uuid.New()}
	_, err := svc.PlaceOrder(ctx, miss)
	assertCode(t, err, pkgerrors.CodeNotFound)

	// Partial selection settles only the chosen line.
	partial := validPlaceInput(customerID)
	partial.SelectedProductLineIDs = []uuid.UUID{selected.ID}
	order, err := svc.PlaceOrder(ctx, partial)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].ProductID != rice.ID {
		t.Fatalf("expected only the selected line, got %+v", order.Lines)
	}
	if !order.Total.Equal(dec("10.00")) {
		t.Fatalf("expected total 10.00, got %s", order.Total)
	}
	if got := stockOf(t, conn, noodles.ID); got != 40 {
		t.Fatalf("unselected product must keep its stock, got %d", got)
	}
	// COD cleanup removes only the settled line.
	if n := countRows(t, conn, &models.CartProductLine{}); n != 1 {
		t.Fatalf("expected the unselected line to remain, got %d rows", n)
	}
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	input := validPlaceInput(uuid.New())
	input.Shipping.RecipientPhone = "  "
	_, err := svc.PlaceOrder(ctx, input)
	pkgErr := assertCode(t, err, pkgerrors.CodeValidation)
	if !strings.Contains(pkgErr.Message(), "recipientPhone") {
		t.Fatalf("expected missing field name, got %q", pkgErr.Message())
	}

	input = validPlaceInput(uuid.New())
	input.PaymentMethod = "cheque"
	_, err = svc.PlaceOrder(ctx, input)
	assertCode(t, err, pkgerrors.CodeValidation)

	input = validPlaceInput(uuid.Nil)
	_, err = svc.PlaceOrder(ctx, input)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestPlaceOrderNonCashKeepsCartLines(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Instant Noodles", "0.50", 40)
	seedCartProduct(t, conn, customerID, product.ID, 10)

	input := validPlaceInput(customerID)
	input.PaymentMethod = enums.PaymentMethodBankTransfer
	if _, err := svc.PlaceOrder(ctx, input); err != nil {
		t.Fatalf("place order: %v", err)
	}

	if got := stockOf(t, conn, product.ID); got != 30 {
		t.Fatalf("expected stock 30, got %d", got)
	}
	if n := countRows(t, conn, &models.CartProductLine{}); n != 1 {
		t.Fatalf("non-cash placement must preserve cart lines, got %d rows", n)
	}
}

func TestCancelOrderRestoresStockButNotVoucherUsage(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	sink := &capturingSink{}
	svc := newEngine(t, conn, sink, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 4)
	voucher := seedActiveVoucher(t, conn, enums.VoucherKindPercentage, "10", 5, 0)

	input := validPlaceInput(customerID)
	input.VoucherCode = voucher.Code
	order, err := svc.PlaceOrder(ctx, input)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if got := stockOf(t, conn, product.ID); got != 6 {
		t.Fatalf("expected stock 6 after placement, got %d", got)
	}

	cancelled, err := svc.CancelOrder(ctx, order.Code, customerID)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := stockOf(t, conn, product.ID); got != 10 {
		t.Fatalf("expected full stock restitution, got %d", got)
	}

	// A redemption is a spent use even when the order is cancelled.
	var reloaded models.Voucher
	if err := conn.First(&reloaded, "id = ?", voucher.ID).Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("voucher usage must stay spent, got %d", reloaded.UsedCount)
	}

	last := sink.events[len(sink.events)-1]
	if last.Event != notify.EventOrderCancelled || last.OrderCode != order.Code {
		t.Fatalf("expected order.cancelled event, got %+v", last)
	}
}

func TestCancelOrderGuards(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 1)
	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Foreign customers cannot see the order at all.
	_, err = svc.CancelOrder(ctx, order.Code, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)

	if _, err := svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	_, err = svc.CancelOrder(ctx, order.Code, customerID)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	if got := stockOf(t, conn, product.ID); got != 9 {
		t.Fatalf("failed cancellation must not restock, got %d", got)
	}
}

func TestSetOrderStatusEnforcesStateMachine(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 1)
	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Target outside the enumeration.
	_, err = svc.SetOrderStatus(ctx, order.ID, enums.OrderStatus("archived"))
	assertCode(t, err, pkgerrors.CodeValidation)

	// Skipping confirmed is not allowed.
	_, err = svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusShipping)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	for _, target := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusShipping,
		enums.OrderStatusDelivered,
	} {
		updated, err := svc.SetOrderStatus(ctx, order.ID, target)
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("expected %s, got %s", target, updated.Status)
		}
	}

	// Delivered is terminal.
	_, err = svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusCancelled)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.SetOrderStatus(ctx, uuid.New(), enums.OrderStatusConfirmed)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestSetOrderStatusAdminCancelRestoresStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	sink := &capturingSink{}
	svc := newEngine(t, conn, sink, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 4)
	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if _, err := svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm order: %v", err)
	}

	updated, err := svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if got := stockOf(t, conn, product.ID); got != 10 {
		t.Fatalf("admin cancel must restock, got %d", got)
	}

	last := sink.events[len(sink.events)-1]
	if last.Event != notify.EventOrderCancelled {
		t.Fatalf("expected order.cancelled event, got %+v", last)
	}
}

func TestEditOrderOverwritesShippingFieldsOnly(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 2)
	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	note := "leave with the doorman"
	edit := EditOrderInput{
		Shipping: ShippingInfo{
			DeliveryAddress: "88 Harbor Lane",
			RecipientName:   "Thao Vu",
			RecipientPhone:  "0987654321",
		},
		PaymentMethod: enums.PaymentMethodWallet,
		Note:          &note,
	}
	updated, err := svc.EditOrder(ctx, order.Code, customerID, edit)
	if err != nil {
		t.Fatalf("edit order: %v", err)
	}

	var reloaded models.Order
	if err := conn.Preload("Lines").First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.DeliveryAddress != "88 Harbor Lane" || reloaded.RecipientName != "Thao Vu" {
		t.Fatalf("shipping fields not updated: %+v", reloaded)
	}
	if reloaded.PaymentMethod != enums.PaymentMethodWallet {
		t.Fatalf("expected wallet, got %s", reloaded.PaymentMethod)
	}
	if reloaded.Note == nil || *reloaded.Note != note {
		t.Fatalf("note not updated: %v", reloaded.Note)
	}
	if !reloaded.Total.Equal(order.Total) || len(reloaded.Lines) != len(order.Lines) {
		t.Fatal("totals and lines must be untouched by an edit")
	}
	if updated.DeliveryAddress != reloaded.DeliveryAddress {
		t.Fatal("returned order out of sync with stored order")
	}
}

func TestEditOrderGuards(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 1)
	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	edit := EditOrderInput{
		Shipping: ShippingInfo{
			DeliveryAddress: "88 Harbor Lane",
			RecipientName:   "Thao Vu",
			RecipientPhone:  "",
		},
		PaymentMethod: enums.PaymentMethodCOD,
	}
	_, err = svc.EditOrder(ctx, order.Code, customerID, edit)
	assertCode(t, err, pkgerrors.CodeValidation)

	edit.Shipping.RecipientPhone = "0987654321"
	_, err = svc.EditOrder(ctx, order.Code, uuid.New(), edit)
	assertCode(t, err, pkgerrors.CodeNotFound)

	// Editable only while pending or confirmed.
	if _, err := svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	if _, err := svc.EditOrder(ctx, order.Code, customerID, edit); err != nil {
		t.Fatalf("edit in confirmed: %v", err)
	}
	if _, err := svc.SetOrderStatus(ctx, order.ID, enums.OrderStatusShipping); err != nil {
		t.Fatalf("ship order: %v", err)
	}
	_, err = svc.EditOrder(ctx, order.Code, customerID, edit)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestExpirePendingCancelsStaleUnconfirmedOrders(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 20)

	placeBankOrder := func() *models.Order {
		seedCartProduct(t, conn, customerID, product.ID, 2)
		input := validPlaceInput(customerID)
		input.PaymentMethod = enums.PaymentMethodBankTransfer
		order, err := svc.PlaceOrder(ctx, input)
		if err != nil {
			t.Fatalf("place order: %v", err)
		}
		// Bank transfers keep cart lines; drop them so the next
		// placement starts clean.
		if err := conn.Where("customer_id = ?", customerID).Delete(&models.CartProductLine{}).Error; err != nil {
			t.Fatalf("clear cart: %v", err)
		}
		return order
	}

	stale := placeBankOrder()
	fresh := placeBankOrder()

	backdate := time.Now().Add(-100 * time.Hour)
	err := conn.Model(&models.Order{}).
		Where("id = ?", stale.ID).
		Update("created_at", backdate).Error
	if err != nil {
		t.Fatalf("backdate order: %v", err)
	}

	cancelled, err := svc.ExpirePending(ctx, time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("expire pending: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 expired order, got %d", cancelled)
	}

	repo := NewRepository(conn)
	staleReloaded, err := repo.FindByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if staleReloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected stale order cancelled, got %s", staleReloaded.Status)
	}
	freshReloaded, err := repo.FindByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if freshReloaded.Status != enums.OrderStatusPendingConfirmation {
		t.Fatalf("expected fresh order untouched, got %s", freshReloaded.Status)
	}

	// Two placements took 4 units; expiring one returned 2.
	if got := stockOf(t, conn, product.ID); got != 18 {
		t.Fatalf("expected stock 18 after restitution, got %d", got)
	}
}

func TestGetAndListOrders(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc := newEngine(t, conn, nil, nil)

	customerID := uuid.New()
	product := seedCatalogProduct(t, conn, "Jasmine Rice 5kg", "10.00", 10)
	seedCartProduct(t, conn, customerID, product.ID, 1)
	order, err := svc.PlaceOrder(ctx, validPlaceInput(customerID))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	got, err := svc.GetOrder(ctx, order.Code, customerID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.ID != order.ID || len(got.Lines) != 1 {
		t.Fatalf("unexpected order %+v", got)
	}

	list, next, err := svc.ListOrders(ctx, customerID, pagination.Params{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(list) != 1 || next != "" {
		t.Fatalf("expected single page with one order, got %d rows next=%q", len(list), next)
	}
}
