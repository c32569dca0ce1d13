package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/minimartlabs/minimart-backend/internal/cart"
	"github.com/minimartlabs/minimart-backend/internal/catalog"
	"github.com/minimartlabs/minimart-backend/internal/pricing"
	"github.com/minimartlabs/minimart-backend/internal/vouchers"
	"github.com/minimartlabs/minimart-backend/pkg/db"
	"github.com/minimartlabs/minimart-backend/pkg/db/models"
	"github.com/minimartlabs/minimart-backend/pkg/enums"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
	"github.com/minimartlabs/minimart-backend/pkg/metrics"
	"github.com/minimartlabs/minimart-backend/pkg/notify"
	"github.com/minimartlabs/minimart-backend/pkg/pagination"
)

const (
	defaultCodeAttempts = 3
	expiryBatchSize     = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publisher interface {
	Publish(ctx context.Context, event notify.OrderEvent)
}

// Service is the order settlement engine: it converts carts into orders and
// owns every mutation of order status, stock counters and voucher usage.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, ref string, customerID uuid.UUID) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	EditOrder(ctx context.Context, ref string, customerID uuid.UUID, input EditOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, ref string, customerID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

type service struct {
	repo         Repository
	catalog      catalog.Store
	cart         cart.Store
	vouchers     vouchers.Store
	tx           txRunner
	sink         publisher
	metrics      *metrics.SettlementMetrics
	codeAttempts int
	now          func() time.Time
}

// NewService builds the settlement engine with its collaborators. The metrics
// set may be nil; the sink may be nil to disable notifications.
func NewService(
	repo Repository,
	catalogStore catalog.Store,
	cartStore cart.Store,
	voucherStore vouchers.Store,
	tx txRunner,
	sink publisher,
	m *metrics.SettlementMetrics,
	codeAttempts int,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogStore == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	if cartStore == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if voucherStore == nil {
		return nil, fmt.Errorf("voucher store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if sink == nil {
		sink = notify.Noop{}
	}
	if codeAttempts <= 0 {
		codeAttempts = defaultCodeAttempts
	}
	return &service{
		repo:         repo,
		catalog:      catalogStore,
		cart:         cartStore,
		vouchers:     voucherStore,
		tx:           tx,
		sink:         sink,
		metrics:      m,
		codeAttempts: codeAttempts,
		now:          time.Now,
	}, nil
}

// stockDemand is the aggregated quantity a settlement takes from one product.
// Demands keep first-seen order so concurrent settlements touch product rows
// in a stable order.
type stockDemand struct {
	ProductID uuid.UUID
	Quantity  int
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	start := s.now()
	order, err := s.placeOrder(ctx, input)
	if err != nil {
		s.metrics.IncRejected(rejectReason(err))
		return nil, err
	}
	s.metrics.ObserveSettlement(s.now().Sub(start))
	s.metrics.IncPlaced(string(order.PaymentMethod))
	s.publish(ctx, notify.EventOrderPlaced, order)
	return order, nil
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := validateShipping(input.Shipping); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}

	productLines, err := s.cart.ListProductLines(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	comboLines, err := s.cart.ListComboLines(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if len(productLines) == 0 && len(comboLines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	if len(input.SelectedProductLineIDs) > 0 || len(input.SelectedComboLineIDs) > 0 {
		productLines = filterProductLines(productLines, input.SelectedProductLineIDs)
		comboLines = filterComboLines(comboLines, input.SelectedComboLineIDs)
		if len(productLines) == 0 && len(comboLines) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no cart lines match the selection")
		}
	}

	demand := aggregateDemand(productLines, comboLines)
	productIDs := make([]uuid.UUID, 0, len(demand))
	for _, d := range demand {
		productIDs = append(productIDs, d.ProductID)
	}
	products, err := s.catalog.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// Advisory fail-fast check; the conditional decrement in the
	// settlement transaction is the authoritative guard.
	for _, d := range demand {
		product, ok := products[d.ProductID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", d.ProductID)
		}
		if product.QuantityOnHand < d.Quantity {
			return nil, insufficientStock(product.Name, product.QuantityOnHand)
		}
	}

	priceLines := make([]pricing.Line, 0, len(productLines)+len(comboLines))
	for _, line := range productLines {
		priceLines = append(priceLines, pricing.Line{
			Quantity:  line.Quantity,
			UnitPrice: products[line.ProductID].UnitPrice,
		})
	}
	for _, line := range comboLines {
		priceLines = append(priceLines, pricing.Line{
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	subtotal := pricing.Subtotal(priceLines)

	var voucher *models.Voucher
	discount := decimal.Zero
	if strings.TrimSpace(input.VoucherCode) != "" {
		voucher, err = s.vouchers.FindByCode(ctx, input.VoucherCode)
		if err != nil {
			return nil, err
		}
		discount, err = pricing.VoucherDiscount(voucher, subtotal, s.now())
		if err != nil {
			return nil, err
		}
	}
	total := pricing.Total(subtotal, discount)

	lines := buildOrderLines(productLines, comboLines, products)
	cleanupProductIDs := lineIDsOfProducts(productLines)
	cleanupComboIDs := lineIDsOfCombos(comboLines)

	var order *models.Order
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		order = &models.Order{
			Code:            NewOrderCode(s.now()),
			CustomerID:      input.CustomerID,
			Subtotal:        subtotal,
			Discount:        discount,
			Total:           total,
			DeliveryAddress: input.Shipping.DeliveryAddress,
			RecipientName:   input.Shipping.RecipientName,
			RecipientPhone:  input.Shipping.RecipientPhone,
			PaymentMethod:   input.PaymentMethod,
			Status:          enums.OrderStatusPendingConfirmation,
			Note:            input.Note,
			Lines:           cloneLines(lines),
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.settle(ctx, tx, order, voucher, discount, demand, cleanupProductIDs, cleanupComboIDs)
		})
		if err == nil {
			return order, nil
		}
		if db.IsUniqueViolation(err, "ux_orders_code") && attempt < s.codeAttempts-1 {
			continue
		}
		break
	}
	if pkgErr := pkgerrors.As(err); pkgErr != nil {
		return nil, pkgErr
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle order")
}

// settle runs the all-or-nothing write sequence of a placement. Any error
// rolls back every write made here.
func (s *service) settle(
	ctx context.Context,
	tx *gorm.DB,
	order *models.Order,
	voucher *models.Voucher,
	discount decimal.Decimal,
	demand []stockDemand,
	cleanupProductIDs, cleanupComboIDs []uuid.UUID,
) error {
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		return err
	}

	if voucher != nil {
		ok, err := s.vouchers.WithTx(tx).IncrementUsage(ctx, voucher.ID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "voucher %s is exhausted", voucher.Code)
		}
		redemption := &models.VoucherRedemption{
			VoucherID:      voucher.ID,
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			DiscountAmount: discount,
		}
		if err := repo.CreateRedemption(ctx, redemption); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record voucher redemption")
		}
	}

	catalogStore := s.catalog.WithTx(tx)
	for _, d := range demand {
		ok, err := catalogStore.DecrementStock(ctx, d.ProductID, d.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			product, lookupErr := catalogStore.FindByID(ctx, d.ProductID)
			if lookupErr != nil {
				return lookupErr
			}
			return insufficientStock(product.Name, product.QuantityOnHand)
		}
	}

	// Cash orders consume their cart lines; other methods keep them so the
	// customer can retry if the external payment step is abandoned.
	if order.PaymentMethod == enums.PaymentMethodCOD {
		cartStore := s.cart.WithTx(tx)
		if err := cartStore.DeleteProductLines(ctx, order.CustomerID, cleanupProductIDs); err != nil {
			return err
		}
		if err := cartStore.DeleteComboLines(ctx, order.CustomerID, cleanupComboIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) CancelOrder(ctx context.Context, ref string, customerID uuid.UUID) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindForCustomer(ctx, ref, customerID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPendingConfirmation {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"order %s cannot be cancelled from status %s", order.Code, order.Status)
		}
		if err := s.cancelWithRestitution(ctx, tx, order); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCancelled()
	s.publish(ctx, notify.EventOrderCancelled, cancelled)
	return cancelled, nil
}

// cancelWithRestitution flips the order to cancelled and returns every line's
// quantity to stock. Voucher usage stays spent: restoring it would let a
// redeem/cancel loop mint unlimited uses of a capped code. Must run inside
// the caller's transaction.
func (s *service) cancelWithRestitution(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID,
		string(order.Status), string(enums.OrderStatusCancelled))
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict,
			"order %s was modified concurrently", order.Code)
	}

	catalogStore := s.catalog.WithTx(tx)
	for _, line := range order.Lines {
		if err := catalogStore.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	order.Status = enums.OrderStatusCancelled
	return nil
}

func (s *service) SetOrderStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", target)
	}

	var updated *models.Order
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == target {
			updated = order
			return nil
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"cannot transition order %s from %s to %s", order.Code, order.Status, target)
		}

		if target == enums.OrderStatusCancelled {
			if err := s.cancelWithRestitution(ctx, tx, order); err != nil {
				return err
			}
		} else {
			ok, err := repo.TransitionStatus(ctx, order.ID, string(order.Status), string(target))
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict,
					"order %s was modified concurrently", order.Code)
			}
			order.Status = target
		}
		updated = order
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if target == enums.OrderStatusCancelled {
			s.metrics.IncCancelled()
			s.publish(ctx, notify.EventOrderCancelled, updated)
		} else {
			s.publish(ctx, notify.EventOrderStatusChanged, updated)
		}
	}
	return updated, nil
}

func (s *service) EditOrder(ctx context.Context, ref string, customerID uuid.UUID, input EditOrderInput) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := validateShipping(input.Shipping); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForCustomer(ctx, ref, customerID)
		if err != nil {
			return err
		}
		if !order.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"order %s can no longer be edited in status %s", order.Code, order.Status)
		}

		updates := map[string]any{
			"delivery_address": input.Shipping.DeliveryAddress,
			"recipient_name":   input.Shipping.RecipientName,
			"recipient_phone":  input.Shipping.RecipientPhone,
			"payment_method":   string(input.PaymentMethod),
			"note":             input.Note,
			"updated_at":       s.now().UTC(),
		}
		if err := repo.UpdateFields(ctx, order.ID, updates); err != nil {
			return err
		}

		order.DeliveryAddress = input.Shipping.DeliveryAddress
		order.RecipientName = input.Shipping.RecipientName
		order.RecipientPhone = input.Shipping.RecipientPhone
		order.PaymentMethod = input.PaymentMethod
		order.Note = input.Note
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.EventOrderEdited, updated)
	return updated, nil
}

func (s *service) GetOrder(ctx context.Context, ref string, customerID uuid.UUID) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.FindForCustomer(ctx, ref, customerID)
}

func (s *service) ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if customerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return s.repo.ListByCustomer(ctx, customerID, params)
}

// ExpirePending cancels unconfirmed non-cash orders older than the cutoff,
// one transaction per order so a single bad row cannot wedge the batch.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.ListPendingBefore(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	var errs error
	for i := range stale {
		order := &stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.cancelWithRestitution(ctx, tx, order)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.Code, err))
			continue
		}
		cancelled++
		s.metrics.IncCancelled()
		s.publish(ctx, notify.EventOrderCancelled, order)
	}
	return cancelled, errs
}

func (s *service) publish(ctx context.Context, event string, order *models.Order) {
	s.sink.Publish(ctx, notify.OrderEvent{
		Event:      event,
		OrderID:    order.ID,
		OrderCode:  order.Code,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: s.now().UTC(),
	})
}

func validateShipping(info ShippingInfo) error {
	var missing []string
	if strings.TrimSpace(info.DeliveryAddress) == "" {
		missing = append(missing, "deliveryAddress")
	}
	if strings.TrimSpace(info.RecipientName) == "" {
		missing = append(missing, "recipientName")
	}
	if strings.TrimSpace(info.RecipientPhone) == "" {
		missing = append(missing, "recipientPhone")
	}
	if len(missing) > 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "missing shipping info: %s", strings.Join(missing, ", "))
	}
	return nil
}

func insufficientStock(productName string, available int) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict,
		"insufficient stock for %s: %d available", productName, available)
}

func rejectReason(err error) string {
	if pkgErr := pkgerrors.As(err); pkgErr != nil {
		return strings.ToLower(string(pkgErr.Code()))
	}
	return "internal_error"
}

func filterProductLines(lines []models.CartProductLine, ids []uuid.UUID) []models.CartProductLine {
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := lines[:0:0]
	for _, line := range lines {
		if wanted[line.ID] {
			filtered = append(filtered, line)
		}
	}
	return filtered
}

func filterComboLines(lines []models.CartComboLine, ids []uuid.UUID) []models.CartComboLine {
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := lines[:0:0]
	for _, line := range lines {
		if wanted[line.ID] {
			filtered = append(filtered, line)
		}
	}
	return filtered
}

func aggregateDemand(productLines []models.CartProductLine, comboLines []models.CartComboLine) []stockDemand {
	index := map[uuid.UUID]int{}
	var demand []stockDemand

	add := func(productID uuid.UUID, qty int) {
		if i, ok := index[productID]; ok {
			demand[i].Quantity += qty
			return
		}
		index[productID] = len(demand)
		demand = append(demand, stockDemand{ProductID: productID, Quantity: qty})
	}

	for _, line := range productLines {
		add(line.ProductID, line.Quantity)
	}
	for _, combo := range comboLines {
		for _, c := range combo.Constituents {
			add(c.ProductID, c.Quantity*combo.Quantity)
		}
	}
	return demand
}

func buildOrderLines(
	productLines []models.CartProductLine,
	comboLines []models.CartComboLine,
	products map[uuid.UUID]*models.Product,
) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(productLines)+len(comboLines))
	for _, line := range productLines {
		product := products[line.ProductID]
		lines = append(lines, models.OrderLine{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.UnitPrice,
		})
	}
	for _, combo := range comboLines {
		for _, c := range combo.Constituents {
			lines = append(lines, models.OrderLine{
				ProductID:   c.ProductID,
				ProductName: fmt.Sprintf("%s (%s)", c.ProductName, combo.ComboName),
				Quantity:    c.Quantity * combo.Quantity,
				UnitPrice:   c.UnitPrice,
			})
		}
	}
	return lines
}

// cloneLines hands each insert attempt a fresh slice so a failed attempt's
// generated ids never leak into the retry.
func cloneLines(lines []models.OrderLine) []models.OrderLine {
	cloned := make([]models.OrderLine, len(lines))
	copy(cloned, lines)
	return cloned
}

func lineIDsOfProducts(lines []models.CartProductLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}
	return ids
}

func lineIDsOfCombos(lines []models.CartComboLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}
	return ids
}
