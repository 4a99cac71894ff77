package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AVY_FORECAST_URL", "https://api.avalanche.ca/forecasts/en/products/point?lat=49.5&long=-115.06")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Forecast.RefreshInterval)
	assert.Equal(t, 24*time.Hour, cfg.Forecast.StaleThreshold)
	assert.Equal(t, 5*time.Second, cfg.Forecast.BackoffBase)
	assert.Equal(t, 10*time.Minute, cfg.Forecast.BackoffCap)
	assert.Equal(t, 10*time.Second, cfg.Forecast.StepTimeout)
	assert.Equal(t, int64(1<<20), cfg.Forecast.MaxBodyBytes)
	assert.Equal(t, 50*time.Millisecond, cfg.Device.TickInterval)
	assert.Equal(t, 600*time.Millisecond, cfg.Device.TapMaxDuration)
	assert.Equal(t, 12.0, cfg.Device.TapMaxMovement)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Observability.Enabled)
	assert.False(t, cfg.StoreEnabled())
	assert.True(t, cfg.ServerEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AVY_FORECAST_URL", "http://127.0.0.1:9000/forecast")
	t.Setenv("AVY_REFRESH_INTERVAL", "5m")
	t.Setenv("AVY_STORE_PATH", "/var/lib/avydash/forecast.db")
	t.Setenv("STATUS_ADDR", "")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Forecast.RefreshInterval)
	assert.True(t, cfg.StoreEnabled())
	assert.False(t, cfg.ServerEnabled(), "an explicitly empty address disables the server")
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want config.ErrorType
	}{
		{"missing url", map[string]string{"AVY_FORECAST_URL": ""}, config.ErrValidation},
		{"not a url", map[string]string{"AVY_FORECAST_URL": "forecast"}, config.ErrValidation},
		{"ftp url", map[string]string{"AVY_FORECAST_URL": "ftp://example.com/f"}, config.ErrValidation},
		{"bad duration", map[string]string{"AVY_FORECAST_URL": "http://x.test/", "AVY_STEP_TIMEOUT": "soon"}, config.ErrParsing},
		{"cap below base", map[string]string{"AVY_FORECAST_URL": "http://x.test/", "AVY_BACKOFF_BASE": "1m", "AVY_BACKOFF_CAP": "30s"}, config.ErrValidation},
		{"bad log level", map[string]string{"AVY_FORECAST_URL": "http://x.test/", "LOG_LEVEL": "loud"}, config.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.Error(t, err)

			var cfgErr *config.Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.want, cfgErr.Type)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := &config.Error{Type: config.ErrParsing, Message: "bad", Err: errors.New("boom")}
	assert.Equal(t, "[PARSING_FAILED] bad: boom", err.Error())
	assert.Equal(t, "[VALIDATION_FAILED] bad", (&config.Error{Type: config.ErrValidation, Message: "bad"}).Error())
}
