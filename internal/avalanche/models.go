// Package avalanche holds the forecast domain model and the forecast cache.
package avalanche

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/avydash/avydash/pkg/geometry"
)

// Forecast errors.
var (
	ErrUnknownSubregion  = errors.New("unknown subregion")
	ErrNoSubregions      = errors.New("provisioning lists no subregions")
	ErrDuplicateRegionID = errors.New("duplicate subregion id")
	ErrEmptyRegionID     = errors.New("subregion id is empty")
)

// DangerRating is the avalanche danger level on the North American public scale.
type DangerRating int

const (
	NoRating DangerRating = iota
	Low
	Moderate
	Considerable
	High
	Extreme
)

var ratingNames = [...]string{
	NoRating:     "No Rating",
	Low:          "Low",
	Moderate:     "Moderate",
	Considerable: "Considerable",
	High:         "High",
	Extreme:      "Extreme",
}

func (r DangerRating) String() string {
	if r < NoRating || r > Extreme {
		return ratingNames[NoRating]
	}
	return ratingNames[r]
}

// Level returns the numeric danger level, 0 for NoRating.
func (r DangerRating) Level() int {
	if r < NoRating || r > Extreme {
		return 0
	}
	return int(r)
}

// ParseRating maps a rating value from the forecast service to a DangerRating.
// Matching is case-insensitive and accepts names ("considerable"), levels ("3")
// and the combined "3:considerable" form. Anything unrecognized, including
// "noRating" and "noForecast", maps to NoRating; the second return value is
// false only when the input was non-empty and unrecognized.
func ParseRating(value string) (DangerRating, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if i := strings.IndexByte(v, ':'); i >= 0 {
		v = strings.TrimSpace(v[i+1:])
	}

	switch v {
	case "low", "1":
		return Low, true
	case "moderate", "2":
		return Moderate, true
	case "considerable", "3":
		return Considerable, true
	case "high", "4":
		return High, true
	case "extreme", "5":
		return Extreme, true
	case "", "norating", "no rating", "noforecast", "no forecast", "0", "n/a":
		return NoRating, true
	default:
		return NoRating, false
	}
}

// Band is an elevation band used by point-product forecasts.
type Band string

const (
	BandAlpine        Band = "alp"
	BandTreeline      Band = "tln"
	BandBelowTreeline Band = "btl"
	BandNone          Band = ""
)

// Region is one provisioned forecast zone: its identity and where it is drawn.
type Region struct {
	ID      string
	Name    string
	Polygon geometry.Polygon

	// Band links the region to an elevation band when the endpoint serves a
	// point-product document instead of a keyed one.
	Band Band
}

// Subregion is a region together with the forecast published for it.
// Values held in a Snapshot are never modified.
type Subregion struct {
	ID         string
	Name       string
	Polygon    geometry.Polygon
	Rating     DangerRating
	ValidFrom  time.Time
	ValidUntil time.Time

	// Summary is a short headline for the detail view, for example the
	// forecast day ("Tuesday, January 14").
	Summary string

	// Outlook holds the ratings for the days after the current one, in
	// forecast order. Only point-product documents carry an outlook.
	Outlook []DayRating
}

// DayRating is the rating forecast for one later day.
type DayRating struct {
	Date   time.Time
	Label  string
	Rating DangerRating
}

// SameForecast reports whether two subregions would be drawn the same in the
// detail view.
func (s Subregion) SameForecast(o Subregion) bool {
	if s.Rating != o.Rating || len(s.Outlook) != len(o.Outlook) {
		return false
	}
	for i, d := range s.Outlook {
		if d.Label != o.Outlook[i].Label || d.Rating != o.Outlook[i].Rating {
			return false
		}
	}
	return true
}

// Snapshot is the immutable result of one fetch cycle.
type Snapshot struct {
	FetchedAt  time.Time
	ETag       string
	Complete   bool
	subregions map[string]Subregion
}

// NewSnapshot builds a snapshot, copying subregions so later changes to the
// caller's map cannot leak in.
func NewSnapshot(fetchedAt time.Time, etag string, complete bool, subregions map[string]Subregion) *Snapshot {
	copied := make(map[string]Subregion, len(subregions))
	for id, sr := range subregions {
		sr.Outlook = slices.Clone(sr.Outlook)
		copied[id] = sr
	}
	return &Snapshot{
		FetchedAt:  fetchedAt,
		ETag:       etag,
		Complete:   complete,
		subregions: copied,
	}
}

// Refetched returns a new snapshot with the same forecast content and a new
// fetch time, used when the server reports the document unchanged.
func (s *Snapshot) Refetched(at time.Time) *Snapshot {
	return NewSnapshot(at, s.ETag, s.Complete, s.subregions)
}

// Subregion looks up a subregion by id.
func (s *Snapshot) Subregion(id string) (Subregion, bool) {
	if s == nil {
		return Subregion{}, false
	}
	sr, ok := s.subregions[id]
	return sr, ok
}

// Subregions returns a copy of every subregion in the snapshot keyed by id.
func (s *Snapshot) Subregions() map[string]Subregion {
	if s == nil {
		return nil
	}
	out := make(map[string]Subregion, len(s.subregions))
	for id, sr := range s.subregions {
		out[id] = sr
	}
	return out
}

// Len returns the number of subregions in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.subregions)
}

// IDs returns the subregion ids present in the snapshot in no particular order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.subregions))
	for id := range s.subregions {
		ids = append(ids, id)
	}
	return ids
}

// FetchState is the progress of a fetch as seen by its owner.
type FetchState int

const (
	FetchPending FetchState = iota
	FetchSucceeded
	FetchFailed
)

func (s FetchState) String() string {
	switch s {
	case FetchPending:
		return "pending"
	case FetchSucceeded:
		return "succeeded"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchStatus is the outcome of polling a fetch. Snapshot is set only when
// State is FetchSucceeded, Err only when State is FetchFailed.
type FetchStatus struct {
	State    FetchState
	Snapshot *Snapshot
	Err      error
}

// Pending reports a fetch that needs to be polled again.
func Pending() FetchStatus {
	return FetchStatus{State: FetchPending}
}

// Succeeded reports a fetch that produced a snapshot.
func Succeeded(s *Snapshot) FetchStatus {
	return FetchStatus{State: FetchSucceeded, Snapshot: s}
}

// Failed reports a fetch that produced no data.
func Failed(err error) FetchStatus {
	return FetchStatus{State: FetchFailed, Err: err}
}

// Done reports whether the fetch reached a terminal state.
func (s FetchStatus) Done() bool {
	return s.State != FetchPending
}

// CacheChangeEvent tells the UI how a fetch result changed what it should show.
type CacheChangeEvent int

const (
	Unchanged CacheChangeEvent = iota
	Updated
	Degraded
)

func (e CacheChangeEvent) String() string {
	switch e {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}
