package worker

import (
	"time"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/provider/resilience"
)

// StatusSnapshot is an immutable view of the loop for other goroutines.
type StatusSnapshot struct {
	At          time.Time `json:"at" msgpack:"at"`
	View        string    `json:"view" msgpack:"view"`
	RegionID    string    `json:"region_id,omitempty" msgpack:"region_id,omitempty"`
	Message     string    `json:"message,omitempty" msgpack:"message,omitempty"`
	StaleBanner bool      `json:"stale_banner" msgpack:"stale_banner"`

	Forecast ForecastStatus `json:"forecast" msgpack:"forecast"`
	Fetch    FetchStatus    `json:"fetch" msgpack:"fetch"`
	Sources  []SourceStatus `json:"sources" msgpack:"sources"`
	Stats    LoopStats      `json:"stats" msgpack:"stats"`
	Regions  []RegionStatus `json:"regions" msgpack:"regions"`
}

// ForecastStatus describes what the cache holds.
type ForecastStatus struct {
	Stale           bool       `json:"stale" msgpack:"stale"`
	AgeSeconds      float64    `json:"age_seconds" msgpack:"age_seconds"`
	LastGoodAt      *time.Time `json:"last_good_at,omitempty" msgpack:"last_good_at,omitempty"`
	CurrentAt       *time.Time `json:"current_at,omitempty" msgpack:"current_at,omitempty"`
	CurrentComplete bool       `json:"current_complete" msgpack:"current_complete"`
}

// FetchStatus describes the fetch schedule.
type FetchStatus struct {
	Pending        bool      `json:"pending" msgpack:"pending"`
	Step           string    `json:"step,omitempty" msgpack:"step,omitempty"`
	NextAttemptAt  time.Time `json:"next_attempt_at" msgpack:"next_attempt_at"`
	BackoffSeconds float64   `json:"backoff_seconds" msgpack:"backoff_seconds"`
	Failures       int       `json:"consecutive_failures" msgpack:"consecutive_failures"`
	LastError      string    `json:"last_error,omitempty" msgpack:"last_error,omitempty"`
}

// RegionStatus is the rating shown for one subregion.
type RegionStatus struct {
	ID         string     `json:"id" msgpack:"id"`
	Name       string     `json:"name" msgpack:"name"`
	Rating     string     `json:"rating" msgpack:"rating"`
	Level      int        `json:"level" msgpack:"level"`
	ValidUntil *time.Time `json:"valid_until,omitempty" msgpack:"valid_until,omitempty"`

	Outlook []OutlookStatus `json:"outlook,omitempty" msgpack:"outlook,omitempty"`
}

// OutlookStatus is the rating forecast for a later day.
type OutlookStatus struct {
	Label  string `json:"label" msgpack:"label"`
	Rating string `json:"rating" msgpack:"rating"`
	Level  int    `json:"level" msgpack:"level"`
}

// SourceStatus is the health of a forecast source.
type SourceStatus struct {
	Name          string     `json:"name" msgpack:"name"`
	State         string     `json:"state" msgpack:"state"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty" msgpack:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty" msgpack:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty" msgpack:"last_error,omitempty"`
}

// LoopStats counts loop activity since start.
type LoopStats struct {
	Ticks           int64 `json:"ticks" msgpack:"ticks"`
	FetchesComplete int64 `json:"fetches_complete" msgpack:"fetches_complete"`
	FetchesPartial  int64 `json:"fetches_partial" msgpack:"fetches_partial"`
	FetchesFailed   int64 `json:"fetches_failed" msgpack:"fetches_failed"`
	TapsDispatched  int64 `json:"taps_dispatched" msgpack:"taps_dispatched"`
	TapsDiscarded   int64 `json:"taps_discarded" msgpack:"taps_discarded"`
	Redraws         int64 `json:"redraws" msgpack:"redraws"`
	SavesFailed     int64 `json:"saves_failed" msgpack:"saves_failed"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (l *Loop) buildStatus() *StatusSnapshot {
	view := l.nav.View()
	s := &StatusSnapshot{
		At:          l.clock.Now(),
		View:        view.Kind.String(),
		RegionID:    view.RegionID,
		Message:     view.Message,
		StaleBanner: l.nav.StaleBanner(),
		Stats:       l.stats,
	}
	s.Stats.SavesFailed = l.savesFailed.Load()

	s.Forecast = ForecastStatus{
		Stale:      l.cache.IsStale(),
		AgeSeconds: l.cache.Age().Seconds(),
	}
	if last := l.cache.LastGood(); last != nil {
		s.Forecast.LastGoodAt = timePtr(last.FetchedAt)
	}
	if cur := l.cache.Current(); cur != nil {
		s.Forecast.CurrentAt = timePtr(cur.FetchedAt)
		s.Forecast.CurrentComplete = cur.Complete
	}

	s.Fetch = FetchStatus{
		Pending:        l.pending != nil,
		NextAttemptAt:  l.schedule.NextAttempt(),
		BackoffSeconds: l.schedule.LastDelay().Seconds(),
		Failures:       l.schedule.Failures(),
		LastError:      l.lastErr,
	}
	if l.pending != nil {
		s.Fetch.Step = l.pending.Step().String()
	}

	for _, region := range l.regions {
		rs := RegionStatus{ID: region.ID, Name: region.Name, Rating: avalanche.NoRating.String()}
		if sr, ok := l.cache.Subregion(region.ID); ok {
			rs.Rating = sr.Rating.String()
			rs.Level = sr.Rating.Level()
			rs.ValidUntil = timePtr(sr.ValidUntil)
			for _, day := range sr.Outlook {
				rs.Outlook = append(rs.Outlook, OutlookStatus{Label: day.Label, Rating: day.Rating.String(), Level: day.Rating.Level()})
			}
		}
		s.Regions = append(s.Regions, rs)
	}

	if l.registry != nil {
		for _, h := range l.registry.GetAllHealth() {
			s.Sources = append(s.Sources, sourceStatus(h))
		}
	}
	return s
}

func sourceStatus(h *resilience.SourceHealth) SourceStatus {
	return SourceStatus{
		Name:          h.Name,
		State:         h.CircuitState.String(),
		LastSuccessAt: h.LastSuccessAt,
		LastFailureAt: h.LastFailureAt,
		LastError:     h.LastError,
	}
}
