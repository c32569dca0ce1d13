package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minimartlabs/minimart-backend/api/responses"
	pkgerrors "github.com/minimartlabs/minimart-backend/pkg/errors"
	"github.com/minimartlabs/minimart-backend/pkg/logger"
)

// windowLimiter matches the redis client's fixed-window surface.
type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// PlacementRateLimit bounds how many settlement attempts a single customer
// can make per window.
func PlacementRateLimit(limiter windowLimiter, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			scope := fmt.Sprintf("place-order:%s", CustomerIDFromContext(r.Context()))
			allowed, _, err := limiter.FixedWindowAllow(r.Context(), scope, limit, window)
			if err != nil {
				// Advisory: a broken limiter must not block settlements.
				if logg != nil {
					logg.Error(r.Context(), "rate limit check failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeConflict, "too many placement attempts, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
