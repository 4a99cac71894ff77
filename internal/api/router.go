// Package api provides the local status server of the forecast display.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/avydash/avydash/internal/api/handler"
	"github.com/avydash/avydash/internal/api/middleware"
	"github.com/avydash/avydash/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version string
	Logger  zerolog.Logger

	// Status is required. Screen and Touch are optional: without a Screen the
	// screenshot route answers 404, without Touch the injection route is not
	// mounted.
	Status handler.StatusSource
	Screen handler.ScreenSource
	Touch  handler.TouchSink

	// Locator is optional and names the region under injected touches.
	Locator handler.RegionLocator

	// Gatherer backs GET /metrics. If nil, the route is not mounted.
	Gatherer prometheus.Gatherer

	HTTPMetrics    *middleware.Metrics
	TracerProvider trace.TracerProvider
	Clock          clockwork.Clock

	// ReadLimit and TouchLimit override the default rate limits.
	ReadLimit  *middleware.RateLimitConfig
	TouchLimit *middleware.RateLimitConfig
}

// NewRouter creates a chi router with all status routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.TracerProvider))
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger, cfg.HTTPMetrics))
	r.Use(chimiddleware.RealIP)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such route")
	})

	readLimit := middleware.ReadRateLimit
	if cfg.ReadLimit != nil {
		readLimit = *cfg.ReadLimit
	}
	touchLimit := middleware.TouchRateLimit
	if cfg.TouchLimit != nil {
		touchLimit = *cfg.TouchLimit
	}

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.Status, cfg.Clock)
	statusHandler := handler.NewStatusHandler(cfg.Status, cfg.Screen, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/ops/health", opsHandler.HealthCheck)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(readLimit))
			r.Get("/status", statusHandler.Status)
			r.Get("/screen.png", statusHandler.Screen)
		})

		if cfg.Touch != nil {
			touchHandler := handler.NewTouchHandler(cfg.Touch, cfg.Locator, cfg.Logger)
			r.With(middleware.RateLimitByIP(touchLimit)).Post("/touch", touchHandler.Inject)
		}
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
