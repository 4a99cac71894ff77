package handler

import (
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/avydash/avydash/internal/api/models"
	"github.com/avydash/avydash/internal/api/response"
	"github.com/avydash/avydash/internal/ui"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version string
	status  StatusSource
	clock   clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version string, status StatusSource, clock clockwork.Clock) *OpsHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OpsHandler{version: version, status: status, clock: clock}
}

// HealthCheck handles GET /v1/ops/health.
//
// The device is DEGRADED while the stale banner is up and FAIL once it has
// entered the terminal error view. Only FAIL answers 503.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Status()

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   h.clock.Now().UTC(),
		Details: map[string]any{
			"version": h.version,
			"view":    snap.View,
		},
	}

	code := http.StatusOK
	switch {
	case snap.View == ui.ErrorView.String():
		health.Status = models.HealthStatusFail
		code = http.StatusServiceUnavailable
	case snap.StaleBanner:
		health.Status = models.HealthStatusDegraded
	}

	response.JSON(w, r, code, health)
}
