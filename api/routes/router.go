package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/puppytalk-backend/api/controllers"
	"github.com/angelmondragon/puppytalk-backend/api/middleware"
	"github.com/angelmondragon/puppytalk-backend/pkg/config"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

// RouterParams carries the dependencies of the ops HTTP surface.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	RateLimiter middleware.RateLimiterStore
	Pipeline    controllers.Pipeline
	Gatherer    prometheus.Gatherer
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

	scanPolicy := middleware.NewRateLimitPolicy("inactivity-scan", cfg.Ops.TriggerWindow, cfg.Ops.TriggerLimit)
	dispatchPolicy := middleware.NewRateLimitPolicy("dispatch", cfg.Ops.TriggerWindow, cfg.Ops.TriggerLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    params.DB,
			"redis": params.Redis,
		}))
	})

	if params.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/ops/v1", func(r chi.Router) {
		r.Get("/notifications/statistics", controllers.NotificationStatistics(params.Pipeline, logg))
		r.With(middleware.RateLimit(scanPolicy, params.RateLimiter, logg)).
			Post("/inactivity-scans", controllers.TriggerInactivityScan(params.Pipeline, logg))
		r.With(middleware.RateLimit(dispatchPolicy, params.RateLimiter, logg)).
			Post("/dispatch-runs", controllers.TriggerDispatch(params.Pipeline, logg))
	})

	return r
}
