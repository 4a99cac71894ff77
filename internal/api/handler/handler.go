// Package handler provides HTTP handlers for the device status server.
package handler

import (
	"time"

	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/internal/worker"
)

// StatusSource publishes the latest loop status.
type StatusSource interface {
	Status() *worker.StatusSnapshot
}

// ScreenSource encodes the current frame.
type ScreenSource interface {
	PNG() ([]byte, error)
}

// TouchSink accepts injected touches.
type TouchSink interface {
	Tap(x, y float64, hold time.Duration) bool
	Pending() int
}

// RegionLocator reports which region a raw touch lands on.
type RegionLocator interface {
	Resolve(s touch.Sample) (string, bool)
}
