package worker

import (
	"context"
	"errors"
	"time"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/avalanche/forecastapi"
)

const (
	outcomeComplete  = "complete"
	outcomePartial   = "partial"
	outcomeFailed    = "failed"
	outcomeAbandoned = "abandoned"
)

// stepFetch starts a fetch when one is due and advances the pending one by
// at most one step.
func (l *Loop) stepFetch(ctx context.Context) {
	if l.pending == nil {
		if !l.schedule.Due() {
			return
		}
		l.pending = l.fetcher.BeginFetch(ctx)
		l.fetchStartedAt = l.clock.Now()
	}

	status := l.fetcher.Poll(l.pending)
	if !status.Done() {
		return
	}
	l.pending = nil
	l.completeFetch(status)
}

// completeFetch feeds a terminal fetch status to the cache, the schedule and
// the navigator.
func (l *Loop) completeFetch(status avalanche.FetchStatus) {
	event := l.cache.Apply(status)

	var (
		outcome string
		delay   time.Duration
	)
	switch {
	case status.State == avalanche.FetchSucceeded && status.Snapshot.Complete:
		outcome = outcomeComplete
		delay = l.schedule.RecordSuccess()
		l.stats.FetchesComplete++
		l.lastErr = ""
		if l.registry != nil {
			l.registry.RecordSuccess(forecastapi.SourceName)
		}
		if l.store != nil && l.cache.LastGood() == status.Snapshot {
			l.enqueueSave(status.Snapshot)
		}

	case status.State == avalanche.FetchSucceeded:
		outcome = outcomePartial
		delay = l.schedule.RecordPartial()
		l.stats.FetchesPartial++
		l.lastErr = "partial forecast"
		if l.registry != nil {
			l.registry.RecordSuccess(forecastapi.SourceName)
		}

	default:
		outcome = outcomeFailed
		delay = l.schedule.RecordFailure()
		l.stats.FetchesFailed++
		if status.Err != nil {
			l.lastErr = status.Err.Error()
		}

		failure := l.logger.Warn().Err(status.Err)
		var statusErr *forecastapi.StatusError
		if errors.As(status.Err, &statusErr) {
			failure = failure.Int("status_code", statusErr.StatusCode).Bool("temporary", statusErr.Temporary())
		}
		if l.registry != nil {
			l.registry.RecordFailure(forecastapi.SourceName, status.Err)
			if h := l.registry.GetHealth(forecastapi.SourceName); h != nil {
				failure = failure.Stringer("circuit", h.CircuitState)
			}
		}
		failure.Msg("forecast fetch failed")
	}

	elapsed := l.clock.Since(l.fetchStartedAt)
	l.logger.Info().
		Str("outcome", outcome).
		Stringer("event", event).
		Dur("elapsed", elapsed).
		Dur("backoff", delay).
		Int("failures", l.schedule.Failures()).
		Msg("forecast fetch finished")

	if l.metrics != nil {
		l.metrics.FetchAttempts.WithLabelValues(outcome).Inc()
		l.metrics.FetchDuration.Observe(elapsed.Seconds())
	}

	l.nav.HandleCacheEvent(event)
}

// enqueueSave hands a snapshot to the save goroutine, replacing one that is
// still waiting.
func (l *Loop) enqueueSave(snap *avalanche.Snapshot) {
	select {
	case l.persist <- snap:
		return
	default:
	}
	select {
	case <-l.persist:
	default:
	}
	select {
	case l.persist <- snap:
	default:
	}
}

func (l *Loop) saveLoop(ctx context.Context) {
	for {
		select {
		case snap := <-l.persist:
			l.save(ctx, snap)
		case <-ctx.Done():
			select {
			case snap := <-l.persist:
				l.save(ctx, snap)
			default:
			}
			return
		}
	}
}

func (l *Loop) save(ctx context.Context, snap *avalanche.Snapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.saveTimeout)
	defer cancel()

	if err := l.store.Save(ctx, snap); err != nil {
		l.savesFailed.Add(1)
		l.logger.Error().Err(err).Time("fetched_at", snap.FetchedAt).Msg("saving forecast failed")
		return
	}
	l.logger.Debug().Time("fetched_at", snap.FetchedAt).Msg("forecast saved")
}
