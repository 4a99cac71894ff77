// Package main runs the avalanche forecast display: the tick loop that fetches
// forecasts and drives the touch UI, plus the local status server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/avydash/avydash/internal/api"
	"github.com/avydash/avydash/internal/api/middleware"
	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/avalanche/forecastapi"
	"github.com/avydash/avydash/internal/config"
	"github.com/avydash/avydash/internal/provider/resilience"
	"github.com/avydash/avydash/internal/render/raster"
	"github.com/avydash/avydash/internal/store"
	"github.com/avydash/avydash/internal/telemetry"
	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/internal/ui"
	"github.com/avydash/avydash/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "avydash"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg)
	log.Info().Str("build_time", BuildTime).Msg("starting avalanche forecast display")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("display stopped with error")
		stop()
		os.Exit(1) //nolint:gocritic // deferred stop already ran
	}
	log.Info().Msg("display stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "console") {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}

	ctx := log.Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version)
	if cfg.DeviceID != "" {
		ctx = ctx.Str("device_id", cfg.DeviceID)
	}
	return ctx.Logger()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	prov, err := config.LoadProvisioning(cfg.Device.ProvisioningFile)
	if err != nil {
		return err
	}
	log.Info().
		Int("regions", prov.Regions.Len()).
		Int("width", prov.Width).
		Int("height", prov.Height).
		Msg("provisioning loaded")

	tel, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: Version,
		DeviceID:       cfg.DeviceID,
		OTLPEndpoint:   cfg.Observability.Endpoint,
		Enabled:        cfg.Observability.Enabled,
		ExportInterval: cfg.Observability.ExportInterval,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)

	clock := clockwork.NewRealClock()

	breakerCfg := resilience.DefaultCircuitBreakerConfig(forecastapi.SourceName)
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}
	breaker := resilience.NewBreaker(breakerCfg)

	registry := resilience.NewRegistry(clock)
	registry.Register(forecastapi.SourceName, breaker)

	client, err := forecastapi.NewClient(forecastapi.ClientConfig{
		URL:          cfg.Forecast.URL,
		Regions:      prov.Regions,
		StepTimeout:  cfg.Forecast.StepTimeout,
		MaxBodyBytes: cfg.Forecast.MaxBodyBytes,
		UserAgent:    cfg.Forecast.UserAgent + "/" + Version,
		Breaker:      breaker,
		Clock:        clock,
		Tracer:       tel.Tracer,
		Meter:        tel.Meter,
		Logger:       log.With().Str("component", "forecastapi").Logger(),
	})
	if err != nil {
		return err
	}

	cache := avalanche.NewCache(avalanche.CacheConfig{
		Regions:        prov.Regions,
		StaleThreshold: cfg.Forecast.StaleThreshold,
		Clock:          clock,
		Logger:         log.With().Str("component", "cache").Logger(),
	})

	schedule := resilience.NewRetrySchedule(resilience.ScheduleConfig{
		Base:            cfg.Forecast.BackoffBase,
		Cap:             cfg.Forecast.BackoffCap,
		RefreshInterval: cfg.Forecast.RefreshInterval,
		Clock:           clock,
	})

	display := raster.New(prov.Width, prov.Height)
	queue := touch.NewQueue(cfg.Device.TouchQueueSize, clock)

	resolver := touch.NewResolver(prov.Regions, prov.Calibration)
	nav := ui.NewNavigator(ui.NavigatorConfig{
		Cache:    cache,
		Regions:  prov.Regions,
		Resolver: resolver,
		Display:  display,
		Layout:   ui.Layout{Width: float64(prov.Width), Height: float64(prov.Height)},
		Health:   registry,
		Logger:   log.With().Str("component", "ui").Logger(),
	})

	var snapshots worker.SnapshotStore
	if cfg.StoreEnabled() {
		st, err := store.Open(ctx, store.Config{
			Path:    cfg.Device.StorePath,
			Regions: prov.Regions,
			Logger:  log.With().Str("component", "store").Logger(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close snapshot store")
			}
		}()
		snapshots = st
	}

	loop := worker.NewLoop(worker.LoopConfig{
		TickInterval: cfg.Device.TickInterval,
		Fetcher:      client,
		Regions:      prov.Regions,
		Cache:        cache,
		Schedule:     schedule,
		Navigator:    nav,
		Touch:        queue,
		Detector: touch.NewDetector(touch.DetectorConfig{
			Profile:     prov.Calibration,
			MaxDuration: cfg.Device.TapMaxDuration,
			MaxMovement: cfg.Device.TapMaxMovement,
		}),
		Registry: registry,
		Store:    snapshots,
		Metrics:  metrics,
		Clock:    clock,
		Logger:   log.With().Str("component", "loop").Logger(),
	})

	if err := loop.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore last forecast, starting empty")
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.ServerEnabled() {
		server = &http.Server{
			Addr: cfg.Server.Addr,
			Handler: api.NewRouter(api.RouterConfig{
				Version:     Version,
				Logger:      log.With().Str("component", "api").Logger(),
				Status:      loop,
				Screen:      display,
				Touch:       queue,
				Locator:     resolver,
				Gatherer:    reg,
				HTTPMetrics: middleware.NewMetrics(reg),
				Clock:       clock,
				ReadLimit: &middleware.RateLimitConfig{
					RequestLimit: cfg.Server.RateLimit,
					WindowLength: time.Minute,
				},
			}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			log.Info().Str("addr", server.Addr).Msg("status server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(loopCtx)
	}()

	var runErr error
	select {
	case runErr = <-loopDone:
	case err := <-serverErr:
		log.Error().Err(err).Msg("status server failed")
		cancelLoop()
		runErr = errors.Join(err, <-loopDone)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("status server forced to shutdown")
		}
	}

	return runErr
}
