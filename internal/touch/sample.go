// Package touch turns raw touch-controller samples into taps on the forecast map.
package touch

import (
	"time"

	"github.com/avydash/avydash/pkg/geometry"
)

// Sample is one raw reading from the touch controller, in controller units.
//
// Contact is false for a release. A release carries the last position the
// controller reported so that movement over the whole gesture can be checked.
type Sample struct {
	X        float64
	Y        float64
	Pressure float64
	Contact  bool
	At       time.Time
}

// Raw returns the sample position as a point in controller space.
func (s Sample) Raw() geometry.Point {
	return geometry.Point{X: s.X, Y: s.Y}
}
