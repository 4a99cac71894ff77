package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/avydash/avydash/internal/api/models"
)

// Recovery turns a panicking status handler into a 500 problem response and
// counts it on m when m is non-nil. Handlers only read published loop state,
// so the tick loop keeps running and the panel keeps drawing.
func Recovery(log zerolog.Logger, m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				route := routePattern(r)
				if m != nil {
					m.panics.WithLabelValues(route).Inc()
				}

				requestID := GetRequestID(r.Context())
				log.Error().
					Str("request_id", requestID).
					Str("route", route).
					Str("panic", fmt.Sprint(v)).
					Bytes("stack", debug.Stack()).
					Msg("status handler panicked")

				problem := models.NewInternalError(requestID, "the status server failed to answer; the display is unaffected")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
