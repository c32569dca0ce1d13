package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minimartlabs/minimart-backend/api/middleware"
	"github.com/minimartlabs/minimart-backend/api/responses"
	"github.com/minimartlabs/minimart-backend/api/validators"
	internalorders "github.com/minimartlabs/minimart-backend/internal/orders"
	"github.com/minimartlabs/minimart-backend/pkg/enums"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
	"github.com/minimartlabs/minimart-backend/pkg/logger"
	"github.com/minimartlabs/minimart-backend/pkg/pagination"
)

type placeOrderRequest struct {
	DeliveryAddress        string   `json:"deliveryAddress" validate:"required"`
	RecipientName          string   `json:"recipientName" validate:"required"`
	RecipientPhone         string   `json:"recipientPhone" validate:"required"`
	PaymentMethod          string   `json:"paymentMethod" validate:"required,oneof=cod bank_transfer wallet"`
	Note                   *string  `json:"note,omitempty"`
	VoucherCode            string   `json:"voucherCode,omitempty"`
	SelectedProductLineIDs []string `json:"selectedProductLineIds,omitempty" validate:"dive,uuid"`
	SelectedComboLineIDs   []string `json:"selectedComboLineIds,omitempty" validate:"dive,uuid"`
}

type editOrderRequest struct {
	DeliveryAddress string  `json:"deliveryAddress" validate:"required"`
	RecipientName   string  `json:"recipientName" validate:"required"`
	RecipientPhone  string  `json:"recipientPhone" validate:"required"`
	PaymentMethod   string  `json:"paymentMethod" validate:"required,oneof=cod bank_transfer wallet"`
	Note            *string `json:"note,omitempty"`
}

type orderPage struct {
	Orders     any    `json:"orders"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Place settles the customer's cart into an order.
func Place(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.CustomerIDFromContext(r.Context())

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productIDs, err := parseUUIDs(req.SelectedProductLineIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		comboIDs, err := parseUUIDs(req.SelectedComboLineIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), internalorders.PlaceOrderInput{
			CustomerID: customerID,
			Shipping: internalorders.ShippingInfo{
				DeliveryAddress: req.DeliveryAddress,
				RecipientName:   req.RecipientName,
				RecipientPhone:  req.RecipientPhone,
			},
			PaymentMethod:          enums.PaymentMethod(req.PaymentMethod),
			Note:                   req.Note,
			VoucherCode:            req.VoucherCode,
			SelectedProductLineIDs: productIDs,
			SelectedComboLineIDs:   comboIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Cancel cancels a pending order and returns its stock.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.CustomerIDFromContext(r.Context())
		ref, err := orderRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CancelOrder(r.Context(), ref, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Edit overwrites an order's shipping info, payment method and note.
func Edit(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.CustomerIDFromContext(r.Context())
		ref, err := orderRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req editOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.EditOrder(r.Context(), ref, customerID, internalorders.EditOrderInput{
			Shipping: internalorders.ShippingInfo{
				DeliveryAddress: req.DeliveryAddress,
				RecipientName:   req.RecipientName,
				RecipientPhone:  req.RecipientPhone,
			},
			PaymentMethod: enums.PaymentMethod(req.PaymentMethod),
			Note:          req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Detail returns a single order by id or code, scoped to the customer.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.CustomerIDFromContext(r.Context())
		ref, err := orderRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), ref, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// List returns the customer's orders newest first with cursor pagination.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.CustomerIDFromContext(r.Context())

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, next, err := svc.ListOrders(r.Context(), customerID, pagination.Params{
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderPage{Orders: list, NextCursor: next})
	}
}

func orderRef(r *http.Request) (string, error) {
	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	if ref == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	return ref, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart line id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
