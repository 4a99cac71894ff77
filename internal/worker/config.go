// Package worker runs the device tick loop: it drives forecast fetches, feeds
// touches to the navigator and draws frames, one bounded step at a time.
package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/avalanche/forecastapi"
	"github.com/avydash/avydash/internal/provider/resilience"
	"github.com/avydash/avydash/internal/telemetry"
	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/internal/ui"
)

// Defaults.
const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultSaveTimeout  = 5 * time.Second
)

// Fetcher starts and advances forecast fetches. *forecastapi.Client
// implements it.
type Fetcher interface {
	BeginFetch(ctx context.Context) *forecastapi.FetchHandle
	Poll(h *forecastapi.FetchHandle) avalanche.FetchStatus
	Abandon(h *forecastapi.FetchHandle)
	SetBaseline(s *avalanche.Snapshot)
}

// SnapshotStore keeps the last complete forecast across restarts.
type SnapshotStore interface {
	Load(ctx context.Context) (*avalanche.Snapshot, error)
	Save(ctx context.Context, snap *avalanche.Snapshot) error
}

// LoopConfig holds the collaborators of the tick loop.
type LoopConfig struct {
	// TickInterval is the loop period (default: 50ms).
	TickInterval time.Duration

	Fetcher   Fetcher
	Regions   *avalanche.Provisioning
	Cache     *avalanche.Cache
	Schedule  *resilience.RetrySchedule
	Navigator *ui.Navigator
	Touch     touch.Source
	Detector  *touch.Detector

	// Registry records source health. Optional.
	Registry *resilience.Registry

	// Store persists complete snapshots. Optional.
	Store SnapshotStore

	// SaveTimeout bounds one store write (default: 5 seconds).
	SaveTimeout time.Duration

	// Metrics are optional.
	Metrics *telemetry.Metrics

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

func (c *LoopConfig) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = DefaultSaveTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
}
