// Package config defines the runtime configuration of the forecast display.
//
// Values are read once at startup from the environment (optionally seeded
// from a .env file) and validated before any component is built. The region
// list, screen size and touch calibration live in a separate provisioning
// file because they are per-device data rather than tunables.
package config

import "time"

// Config is the top-level configuration.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`
	DeviceID  string `envconfig:"AVY_DEVICE_ID"`

	Forecast      ForecastConfig
	Device        DeviceConfig
	Server        ServerConfig
	Observability ObservabilityConfig
}

// ForecastConfig controls fetching and staleness.
type ForecastConfig struct {
	URL             string        `envconfig:"AVY_FORECAST_URL" validate:"required,url,startswith=http"`
	RefreshInterval time.Duration `envconfig:"AVY_REFRESH_INTERVAL" default:"15m" validate:"gt=0"`
	StaleThreshold  time.Duration `envconfig:"AVY_STALE_THRESHOLD" default:"24h" validate:"gt=0"`
	BackoffBase     time.Duration `envconfig:"AVY_BACKOFF_BASE" default:"5s" validate:"gt=0"`
	BackoffCap      time.Duration `envconfig:"AVY_BACKOFF_CAP" default:"10m" validate:"gtefield=BackoffBase"`
	StepTimeout     time.Duration `envconfig:"AVY_STEP_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxBodyBytes    int64         `envconfig:"AVY_MAX_BODY_BYTES" default:"1048576" validate:"gt=0"`
	UserAgent       string        `envconfig:"AVY_USER_AGENT" default:"avydash"`
}

// DeviceConfig controls the tick loop and touch handling.
type DeviceConfig struct {
	TickInterval     time.Duration `envconfig:"AVY_TICK_INTERVAL" default:"50ms" validate:"gt=0"`
	TapMaxDuration   time.Duration `envconfig:"AVY_TAP_MAX_DURATION" default:"600ms" validate:"gt=0"`
	TapMaxMovement   float64       `envconfig:"AVY_TAP_MAX_MOVEMENT" default:"12" validate:"gt=0"`
	TouchQueueSize   int           `envconfig:"AVY_TOUCH_QUEUE_SIZE" default:"64" validate:"min=2"`
	ProvisioningFile string        `envconfig:"AVY_PROVISIONING_FILE" default:"provisioning.yaml" validate:"required"`

	// StorePath is the SQLite file holding the last complete forecast.
	// Empty disables persistence.
	StorePath string `envconfig:"AVY_STORE_PATH"`
}

// ServerConfig controls the local status server. An empty Addr disables it.
type ServerConfig struct {
	Addr      string `envconfig:"STATUS_ADDR" default:":8080"`
	RateLimit int    `envconfig:"STATUS_RATE_LIMIT" default:"120" validate:"gt=0"`
}

// ObservabilityConfig controls OpenTelemetry export.
type ObservabilityConfig struct {
	Enabled        bool          `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint       string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName    string        `envconfig:"OTEL_SERVICE_NAME" default:"avydash"`
	ExportInterval time.Duration `envconfig:"OTEL_EXPORT_INTERVAL" default:"60s" validate:"gt=0"`
}

// StoreEnabled reports whether snapshot persistence is configured.
func (c *Config) StoreEnabled() bool {
	return c.Device.StorePath != ""
}

// ServerEnabled reports whether the status server should run.
func (c *Config) ServerEnabled() bool {
	return c.Server.Addr != ""
}
