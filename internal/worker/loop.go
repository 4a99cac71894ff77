package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/avalanche/forecastapi"
	"github.com/avydash/avydash/internal/provider/resilience"
	"github.com/avydash/avydash/internal/store"
	"github.com/avydash/avydash/internal/telemetry"
	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/internal/ui"
)

// Loop is the single goroutine that owns the cache and the navigator.
//
// Each tick runs three bounded steps in order: advance the forecast fetch,
// consume at most one touch sample, and draw if the screen is dirty. Nothing
// in a tick waits on the network, the touch controller or the store. Other
// goroutines observe the loop only through Status.
type Loop struct {
	fetcher  Fetcher
	regions  []avalanche.Region
	cache    *avalanche.Cache
	schedule *resilience.RetrySchedule
	nav      *ui.Navigator
	touch    touch.Source
	detector *touch.Detector
	registry *resilience.Registry
	store    SnapshotStore
	metrics  *telemetry.Metrics
	clock    clockwork.Clock
	logger   zerolog.Logger

	tickInterval time.Duration
	saveTimeout  time.Duration

	pending        *forecastapi.FetchHandle
	fetchStartedAt time.Time
	lastErr        string
	transitions    int
	stats          LoopStats

	persist     chan *avalanche.Snapshot
	savesFailed atomic.Int64
	status      atomic.Pointer[StatusSnapshot]
}

// NewLoop creates a tick loop. Call Restore before Run to seed the cache
// from the store.
func NewLoop(cfg LoopConfig) *Loop {
	cfg.applyDefaults()

	l := &Loop{
		fetcher:      cfg.Fetcher,
		cache:        cfg.Cache,
		schedule:     cfg.Schedule,
		nav:          cfg.Navigator,
		touch:        cfg.Touch,
		detector:     cfg.Detector,
		registry:     cfg.Registry,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		tickInterval: cfg.TickInterval,
		saveTimeout:  cfg.SaveTimeout,
		persist:      make(chan *avalanche.Snapshot, 1),
	}
	if cfg.Regions != nil {
		l.regions = cfg.Regions.Regions()
	}
	l.publish()
	return l
}

// Status returns the most recently published status. It is safe to call from
// any goroutine.
func (l *Loop) Status() *StatusSnapshot {
	return l.status.Load()
}

// Restore seeds the cache with the snapshot saved by a previous run. A
// missing snapshot is not an error.
func (l *Loop) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	snap, err := l.store.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		l.logger.Info().Msg("no saved forecast")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading saved forecast: %w", err)
	}

	if !l.cache.Seed(snap) {
		l.logger.Warn().Time("fetched_at", snap.FetchedAt).Msg("saved forecast rejected")
		return nil
	}
	l.fetcher.SetBaseline(snap)
	l.nav.HandleCacheEvent(avalanche.Updated)
	l.publish()

	l.logger.Info().
		Time("fetched_at", snap.FetchedAt).
		Int("subregions", snap.Len()).
		Bool("stale", l.cache.IsStale()).
		Msg("restored saved forecast")
	return nil
}

// Run ticks until ctx is cancelled. A fetch still in flight is abandoned and
// never reaches the cache.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Dur("tick_interval", l.tickInterval).Msg("starting tick loop")
	if l.metrics != nil {
		l.metrics.LoopRunning.Set(1)
	}

	var wg sync.WaitGroup
	if l.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.saveLoop(ctx)
		}()
	}

	ticker := l.clock.NewTicker(l.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			wg.Wait()
			l.logger.Info().Msg("tick loop stopped")
			return nil
		case <-ticker.Chan():
			l.Tick(ctx)
		}
	}
}

// Tick runs one iteration of the loop. It must only be called from the
// goroutine that owns the loop.
func (l *Loop) Tick(ctx context.Context) {
	l.stats.Ticks++

	l.stepFetch(ctx)
	l.stepTouch()

	l.nav.CheckStale()
	l.stepDraw()

	l.publish()
}

func (l *Loop) stepTouch() {
	if l.touch == nil {
		return
	}

	sample, ok, err := l.touch.Poll()
	if err != nil {
		if errors.Is(err, touch.ErrHardwareFault) {
			l.nav.HandleFault(err)
			return
		}
		l.logger.Warn().Err(err).Msg("touch read failed")
		return
	}
	if !ok {
		return
	}

	tap, gesture := l.detector.Feed(sample)
	switch gesture {
	case touch.GestureTap:
		l.stats.TapsDispatched++
		l.nav.HandleTap(tap)
	case touch.GestureDrag, touch.GestureHold:
		l.stats.TapsDiscarded++
		l.logger.Debug().Stringer("gesture", gesture).Msg("touch discarded")
	default:
		return
	}
	if l.metrics != nil {
		l.metrics.Taps.WithLabelValues(gesture.String()).Inc()
	}
}

func (l *Loop) stepDraw() {
	if !l.nav.Dirty() {
		return
	}
	if err := l.nav.Draw(); err != nil {
		return
	}
	l.stats.Redraws++
	if l.metrics != nil {
		l.metrics.Redraws.Inc()
	}
}

func (l *Loop) shutdown() {
	if l.pending != nil {
		l.logger.Info().Str("fetch_id", l.pending.ID()).Stringer("step", l.pending.Step()).Msg("abandoning fetch")
		l.fetcher.Abandon(l.pending)
		l.pending = nil
		if l.metrics != nil {
			l.metrics.FetchAttempts.WithLabelValues(outcomeAbandoned).Inc()
		}
	}
	if l.metrics != nil {
		l.metrics.LoopRunning.Set(0)
	}
	l.publish()
}

func (l *Loop) publish() {
	if n := l.nav.Transitions(); n != l.transitions {
		if l.metrics != nil {
			l.metrics.ViewTransitions.WithLabelValues(l.nav.View().Kind.String()).Add(float64(n - l.transitions))
		}
		l.transitions = n
	}

	status := l.buildStatus()
	if l.metrics != nil {
		l.metrics.CacheAge.Set(status.Forecast.AgeSeconds)
		l.metrics.BackoffSeconds.Set(status.Fetch.BackoffSeconds)
		if status.Forecast.Stale {
			l.metrics.Stale.Set(1)
		} else {
			l.metrics.Stale.Set(0)
		}
	}
	l.status.Store(status)
}
