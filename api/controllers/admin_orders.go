package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minimartlabs/minimart-backend/api/responses"
	"github.com/minimartlabs/minimart-backend/api/validators"
	internalorders "github.com/minimartlabs/minimart-backend/internal/orders"
	"github.com/minimartlabs/minimart-backend/pkg/enums"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
	"github.com/minimartlabs/minimart-backend/pkg/logger"
)

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending_confirmation confirmed shipping delivered cancelled"`
}

// AdminSetOrderStatus moves an order along its lifecycle. Cancelling through
// this endpoint returns the order's stock.
func AdminSetOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawOrderID := strings.TrimSpace(chi.URLParam(r, "id"))
		if rawOrderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		orderID, err := uuid.Parse(rawOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SetOrderStatus(r.Context(), orderID, enums.OrderStatus(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
