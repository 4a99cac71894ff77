package models

import "time"

// HealthStatus is the coarse state reported by the health endpoint.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the body of GET /v1/ops/health.
type Health struct {
	Status  HealthStatus   `json:"status" msgpack:"status"`
	Time    time.Time      `json:"time" msgpack:"time"`
	Details map[string]any `json:"details,omitempty" msgpack:"details,omitempty"`
}

// TouchRequest is the body of POST /v1/touch. Coordinates are raw controller
// units, so injected taps go through calibration like real ones.
type TouchRequest struct {
	X      *float64 `json:"x" validate:"required"`
	Y      *float64 `json:"y" validate:"required"`
	HoldMS int      `json:"hold_ms" validate:"gte=0,lte=5000"`
}

// TouchResponse acknowledges an injected touch.
type TouchResponse struct {
	Queued  bool   `json:"queued"`
	Pending int    `json:"pending"`
	Region  string `json:"region,omitempty"`
}
