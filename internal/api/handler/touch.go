package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/api/models"
	"github.com/avydash/avydash/internal/api/response"
	"github.com/avydash/avydash/internal/touch"
)

const maxTouchBody = 1 << 10

// TouchHandler injects simulated taps into the touch queue.
type TouchHandler struct {
	sink     TouchSink
	locator  RegionLocator
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewTouchHandler creates a TouchHandler. The locator is optional; with it the
// response names the region under the tap.
func NewTouchHandler(sink TouchSink, locator RegionLocator, logger zerolog.Logger) *TouchHandler {
	return &TouchHandler{sink: sink, locator: locator, validate: validator.New(), logger: logger}
}

// Inject handles POST /v1/touch.
func (h *TouchHandler) Inject(w http.ResponseWriter, r *http.Request) {
	var req models.TouchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTouchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.BadRequest(w, r, "request body must be a touch object", nil)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.BadRequest(w, r, "invalid touch", fieldErrors(err))
		return
	}

	hold := time.Duration(req.HoldMS) * time.Millisecond
	if !h.sink.Tap(*req.X, *req.Y, hold) {
		response.ServiceUnavailable(w, r, "touch queue is full")
		return
	}

	resp := models.TouchResponse{Queued: true, Pending: h.sink.Pending()}
	if h.locator != nil {
		resp.Region, _ = h.locator.Resolve(touch.Sample{X: *req.X, Y: *req.Y, Contact: true})
	}

	h.logger.Debug().Float64("x", *req.X).Float64("y", *req.Y).Dur("hold", hold).Str("region", resp.Region).Msg("touch injected")
	response.JSON(w, r, http.StatusAccepted, resp)
}

func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if field == "holdms" {
			field = "hold_ms"
		}
		out = append(out, models.FieldError{
			Field:   field,
			Message: field + " failed " + fe.Tag(),
			Code:    fe.Tag(),
		})
	}
	return out
}
