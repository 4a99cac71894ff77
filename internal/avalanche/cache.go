package avalanche

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultStaleThreshold is how old the last complete forecast may get before
// the display flags it as stale.
const DefaultStaleThreshold = 24 * time.Hour

// CacheConfig holds configuration for the forecast cache.
type CacheConfig struct {
	// Regions is the provisioning list. Ratings are only ever reported for
	// these ids.
	Regions *Provisioning

	// StaleThreshold is the maximum age of the last complete snapshot
	// (default: 24 hours).
	StaleThreshold time.Duration

	// Clock is the time source (default: real clock).
	Clock clockwork.Clock

	// Logger for cache transitions.
	Logger zerolog.Logger
}

// Cache holds the current forecast snapshot and the most recent complete one.
//
// It keeps at most two snapshots regardless of how many fetches happen. It is
// not safe for concurrent use: a single owner (the tick loop) applies fetch
// results and answers queries. Other goroutines must read published copies.
type Cache struct {
	regions        *Provisioning
	staleThreshold time.Duration
	clock          clockwork.Clock
	logger         zerolog.Logger

	// createdAt stands in for lastGood.FetchedAt until the first complete
	// snapshot arrives, so a device that never gets data still turns stale.
	createdAt time.Time

	current  *Snapshot
	lastGood *Snapshot
}

// NewCache creates an empty cache.
func NewCache(cfg CacheConfig) *Cache {
	threshold := cfg.StaleThreshold
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache{
		regions:        cfg.Regions,
		staleThreshold: threshold,
		clock:          clock,
		logger:         cfg.Logger,
		createdAt:      clock.Now(),
	}
}

// Apply folds a fetch result into the cache and reports what changed.
//
//   - complete success: becomes current and, unless older than the existing
//     last-good snapshot, last-good. Updated.
//   - partial success: becomes current only. Updated.
//   - failure: nothing changes. Degraded when the last-good data is stale,
//     Unchanged otherwise.
//   - pending: Unchanged.
func (c *Cache) Apply(status FetchStatus) CacheChangeEvent {
	switch status.State {
	case FetchSucceeded:
		snap := status.Snapshot
		if snap == nil {
			return Unchanged
		}
		c.current = snap
		if snap.Complete {
			if c.lastGood == nil || !snap.FetchedAt.Before(c.lastGood.FetchedAt) {
				c.lastGood = snap
			} else {
				c.logger.Warn().
					Time("fetched_at", snap.FetchedAt).
					Time("last_good_at", c.lastGood.FetchedAt).
					Msg("complete snapshot older than last good, keeping last good")
			}
		}

		c.logger.Debug().
			Bool("complete", snap.Complete).
			Int("subregions", snap.Len()).
			Time("fetched_at", snap.FetchedAt).
			Msg("forecast cache updated")
		return Updated

	case FetchFailed:
		if c.IsStale() {
			c.logger.Warn().
				Err(status.Err).
				Dur("age", c.Age()).
				Msg("forecast fetch failed and cached forecast is stale")
			return Degraded
		}
		return Unchanged

	default:
		return Unchanged
	}
}

// Seed installs a snapshot restored from durable storage. Only complete
// snapshots are accepted and last-good never moves backwards in time.
func (c *Cache) Seed(snap *Snapshot) bool {
	if snap == nil || !snap.Complete {
		return false
	}
	if c.lastGood != nil && snap.FetchedAt.Before(c.lastGood.FetchedAt) {
		return false
	}
	c.lastGood = snap
	if c.current == nil || !c.current.FetchedAt.After(snap.FetchedAt) {
		c.current = snap
	}
	return true
}

// RatingFor resolves the danger rating to display for a subregion: the current
// snapshot first, then the last complete one, then NoRating.
func (c *Cache) RatingFor(id string) DangerRating {
	sr, ok := c.Subregion(id)
	if !ok {
		return NoRating
	}
	return sr.Rating
}

// Subregion resolves the forecast detail for id with the same fallback order
// as RatingFor. Unprovisioned ids are never resolved.
func (c *Cache) Subregion(id string) (Subregion, bool) {
	if c.regions != nil && !c.regions.Has(id) {
		return Subregion{}, false
	}
	if sr, ok := c.current.Subregion(id); ok {
		return sr, true
	}
	if sr, ok := c.lastGood.Subregion(id); ok {
		return sr, true
	}
	return Subregion{}, false
}

// Age returns how old the last complete snapshot is. Before the first complete
// snapshot the age is measured from cache creation.
func (c *Cache) Age() time.Duration {
	ref := c.createdAt
	if c.lastGood != nil {
		ref = c.lastGood.FetchedAt
	}
	return c.clock.Since(ref)
}

// IsStale reports whether the last complete snapshot is older than the
// stale threshold.
func (c *Cache) IsStale() bool {
	return c.Age() > c.staleThreshold
}

// StaleThreshold returns the configured stale threshold.
func (c *Cache) StaleThreshold() time.Duration {
	return c.staleThreshold
}

// Current returns the snapshot currently shown, or nil.
func (c *Cache) Current() *Snapshot {
	return c.current
}

// LastGood returns the most recent complete snapshot, or nil.
func (c *Cache) LastGood() *Snapshot {
	return c.lastGood
}
