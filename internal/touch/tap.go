package touch

import (
	"time"

	"github.com/avydash/avydash/pkg/geometry"
)

// Default tap bounds.
const (
	DefaultMaxTapDuration = 600 * time.Millisecond
	DefaultMaxTapMovement = 12.0
)

// Gesture is what a completed touch turned out to be.
type Gesture int

const (
	// GestureNone means no touch completed with this sample.
	GestureNone Gesture = iota
	GestureTap
	GestureDrag
	GestureHold
)

func (g Gesture) String() string {
	switch g {
	case GestureNone:
		return "none"
	case GestureTap:
		return "tap"
	case GestureDrag:
		return "drag"
	case GestureHold:
		return "hold"
	default:
		return "unknown"
	}
}

// Tap is a debounced touch in screen space.
type Tap struct {
	Point    geometry.Point
	At       time.Time
	Duration time.Duration
}

// DetectorConfig holds configuration for tap detection.
type DetectorConfig struct {
	// Profile maps raw samples to screen space.
	Profile Profile

	// MaxDuration is the longest press still counted as a tap (default: 600ms).
	MaxDuration time.Duration

	// MaxMovement is how far, in screen pixels, the contact may wander from
	// where it went down (default: 12).
	MaxMovement float64
}

// Detector recognizes taps in a stream of raw samples.
//
// A tap is a contact followed by a release within MaxDuration that never
// moved more than MaxMovement from where it went down. The tap is reported
// at the calibrated down position.
type Detector struct {
	profile     geometry.Affine
	maxDuration time.Duration
	maxMovement float64

	down    bool
	dragged bool
	startAt time.Time
	startPt geometry.Point
}

// NewDetector creates a tap detector.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxTapDuration
	}
	if cfg.MaxMovement <= 0 {
		cfg.MaxMovement = DefaultMaxTapMovement
	}
	return &Detector{
		profile:     cfg.Profile.Affine(),
		maxDuration: cfg.MaxDuration,
		maxMovement: cfg.MaxMovement,
	}
}

// Feed consumes one sample. It returns GestureTap together with the tap when
// a release completes a tap, GestureDrag or GestureHold when a release
// completes a rejected gesture, and GestureNone otherwise.
func (d *Detector) Feed(s Sample) (Tap, Gesture) {
	pt := d.profile.Apply(s.Raw())

	if s.Contact {
		if !d.down {
			d.down = true
			d.dragged = false
			d.startAt = s.At
			d.startPt = pt
			return Tap{}, GestureNone
		}
		if pt.Distance(d.startPt) > d.maxMovement {
			d.dragged = true
		}
		return Tap{}, GestureNone
	}

	if !d.down {
		return Tap{}, GestureNone
	}
	d.down = false

	duration := s.At.Sub(d.startAt)
	switch {
	case d.dragged || pt.Distance(d.startPt) > d.maxMovement:
		return Tap{}, GestureDrag
	case duration > d.maxDuration || duration < 0:
		return Tap{}, GestureHold
	}

	return Tap{Point: d.startPt, At: s.At, Duration: duration}, GestureTap
}

// Reset forgets any touch in progress.
func (d *Detector) Reset() {
	d.down = false
	d.dragged = false
}
