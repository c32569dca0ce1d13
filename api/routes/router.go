package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minimartlabs/minimart-backend/api/controllers"
	ordercontrollers "github.com/minimartlabs/minimart-backend/api/controllers/orders"
	"github.com/minimartlabs/minimart-backend/api/middleware"
	internalorders "github.com/minimartlabs/minimart-backend/internal/orders"
	"github.com/minimartlabs/minimart-backend/pkg/config"
	"github.com/minimartlabs/minimart-backend/pkg/db"
	"github.com/minimartlabs/minimart-backend/pkg/logger"
	"github.com/minimartlabs/minimart-backend/pkg/redis"
)

// RouterParams are the collaborators the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Orders       internalorders.Service
	PromGatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// Nil *redis.Client must stay a nil interface downstream, so assign
	// conditionally.
	var redisPinger db.Pinger
	var idempotencyStore redis.IdempotencyStore
	placeLimit := func(next http.Handler) http.Handler { return next }
	if params.Redis != nil {
		redisPinger = params.Redis
		idempotencyStore = params.Redis
		placeLimit = middleware.PlacementRateLimit(params.Redis, cfg.Orders.PlaceLimit, cfg.Orders.PlaceWindow, logg)
	}

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, params.DB, redisPinger))

	if params.PromGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.PromGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.CustomerContext(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.With(placeLimit).Post("/", ordercontrollers.Place(params.Orders, logg))
		r.Get("/", ordercontrollers.List(params.Orders, logg))
		r.Get("/{ref}", ordercontrollers.Detail(params.Orders, logg))
		r.Put("/{ref}", ordercontrollers.Edit(params.Orders, logg))
		r.Post("/{ref}/cancel", ordercontrollers.Cancel(params.Orders, logg))
	})

	r.Route("/api/v1/admin/orders", func(r chi.Router) {
		r.Put("/{id}/status", controllers.AdminSetOrderStatus(params.Orders, logg))
	})

	return r
}
