package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/api/response"
)

// StatusHandler exposes what the device is showing.
type StatusHandler struct {
	status StatusSource
	screen ScreenSource
	logger zerolog.Logger
}

// NewStatusHandler creates a StatusHandler. screen may be nil when the
// display cannot be read back.
func NewStatusHandler(status StatusSource, screen ScreenSource, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{status: status, screen: screen, logger: logger}
}

// Status handles GET /v1/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.Formatted(w, r, http.StatusOK, h.status.Status())
}

// Screen handles GET /v1/screen.png.
func (h *StatusHandler) Screen(w http.ResponseWriter, r *http.Request) {
	if h.screen == nil {
		response.NotFound(w, r, "display does not support read back")
		return
	}

	png, err := h.screen.PNG()
	if err != nil {
		h.logger.Warn().Err(err).Msg("encoding screen failed")
		response.InternalError(w, r, "encoding screen failed")
		return
	}
	response.Blob(w, r, "image/png", png)
}
