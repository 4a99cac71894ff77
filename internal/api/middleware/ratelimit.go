package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/avydash/avydash/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Default rate limits.
var (
	// ReadRateLimit applies to status and screen reads (120 req/min).
	ReadRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}

	// TouchRateLimit applies to injected touches (30 req/min). A human
	// tapping a simulator never gets near it; a runaway script does.
	TouchRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client address.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded")
			problem.Instance = r.URL.Path
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}
