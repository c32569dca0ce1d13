package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/minimartlabs/minimart-backend/api/responses"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
	"github.com/minimartlabs/minimart-backend/pkg/logger"
)

type contextKey string

const ctxCustomerID contextKey = "customer_id"

const customerIDHeader = "X-Customer-ID"

// CustomerContext reads the customer identity installed by the upstream
// gateway and makes it available to handlers. Requests without a valid
// identity are rejected before reaching the engine.
func CustomerContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(customerIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "X-Customer-ID header required"))
				return
			}
			customerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxCustomerID, customerID)
			if logg != nil {
				ctx = logg.WithCustomerID(ctx, customerID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCustomerID injects the customer identifier into the context for
// downstream handlers.
func WithCustomerID(ctx context.Context, customerID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCustomerID, customerID)
}

// CustomerIDFromContext returns the authenticated customer id, or uuid.Nil
// when the middleware did not run.
func CustomerIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxCustomerID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
