// Package forecastapi fetches avalanche forecasts without blocking the caller.
//
// A fetch is an explicit state machine that the owner advances by calling
// Poll once per tick. Each network step runs in the background and Poll only
// checks whether it finished, so a slow or dead network never stalls the
// display loop.
package forecastapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/provider/resilience"
)

const (
	// SourceName identifies the forecast source in health and metrics.
	SourceName = "avalanche-forecast"

	// DefaultStepTimeout bounds every step of a fetch.
	DefaultStepTimeout = 10 * time.Second

	// DefaultMaxBodyBytes bounds the response body.
	DefaultMaxBodyBytes = 1 << 20

	instrumentationName = "github.com/avydash/avydash/internal/avalanche/forecastapi"
)

// ErrInvalidURL is returned when the forecast endpoint cannot be fetched.
var ErrInvalidURL = errors.New("forecast url must be absolute http or https")

// ClientConfig holds configuration for the forecast client.
type ClientConfig struct {
	// URL is the forecast endpoint (required).
	URL string

	// Regions is the provisioning list used to parse responses (required).
	Regions *avalanche.Provisioning

	// StepTimeout bounds each step of a fetch (default: 10 seconds).
	StepTimeout time.Duration

	// MaxBodyBytes bounds the response body (default: 1 MiB).
	MaxBodyBytes int64

	// UserAgent is sent with every request.
	UserAgent string

	// Breaker admits fetch attempts. If nil, a default breaker is created.
	Breaker *resilience.Breaker

	// Resolver looks up the endpoint host (default: net.DefaultResolver).
	Resolver *net.Resolver

	// TLSConfig is used for https endpoints. ServerName is filled in from URL.
	TLSConfig *tls.Config

	// Clock is the time source for step timeouts (default: real clock).
	Clock clockwork.Clock

	// Tracer and Meter default to the global OpenTelemetry providers.
	Tracer trace.Tracer
	Meter  metric.Meter

	// Logger for fetch operations.
	Logger zerolog.Logger
}

// Client fetches forecast snapshots. It is owned by a single goroutine.
type Client struct {
	url          *url.URL
	host         string
	port         string
	tlsConfig    *tls.Config
	stepTimeout  time.Duration
	maxBodyBytes int64
	userAgent    string

	breaker  *resilience.Breaker
	resolver *net.Resolver
	dialer   *net.Dialer
	parser   *Parser
	clock    clockwork.Clock
	tracer   trace.Tracer
	logger   zerolog.Logger

	attempts metric.Int64Counter
	duration metric.Float64Histogram

	// last is the most recent snapshot this client produced. Its ETag is sent
	// as If-None-Match and its content is reused on 304 Not Modified.
	last *avalanche.Snapshot
}

// NewClient creates a new forecast client.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing forecast url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, ErrInvalidURL
	}
	if cfg.Regions == nil {
		return nil, avalanche.ErrNoSubregions
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}

	var tlsConfig *tls.Config
	if u.Scheme == "https" {
		if cfg.TLSConfig != nil {
			tlsConfig = cfg.TLSConfig.Clone()
		} else {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = u.Hostname()
		}
	}

	stepTimeout := cfg.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultCircuitBreakerConfig(SourceName))
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	attempts, err := meter.Int64Counter("forecast.fetch.attempts",
		metric.WithDescription("Forecast fetch attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}
	duration, err := meter.Float64Histogram("forecast.fetch.duration",
		metric.WithDescription("Forecast fetch duration from start to terminal state"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Client{
		url:          u,
		host:         u.Hostname(),
		port:         port,
		tlsConfig:    tlsConfig,
		stepTimeout:  stepTimeout,
		maxBodyBytes: maxBody,
		userAgent:    cfg.UserAgent,
		breaker:      breaker,
		resolver:     resolver,
		dialer:       &net.Dialer{},
		parser:       NewParser(cfg.Regions, cfg.Logger),
		clock:        clock,
		tracer:       tracer,
		logger:       cfg.Logger,
		attempts:     attempts,
		duration:     duration,
	}, nil
}

// Breaker returns the circuit breaker guarding this client.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// SetBaseline sets the snapshot used for conditional refresh, typically one
// restored from durable storage at boot.
func (c *Client) SetBaseline(s *avalanche.Snapshot) {
	c.last = s
}

// FetchHandle is one fetch in progress. It belongs to the goroutine that
// called BeginFetch and must only be passed to that client's Poll.
type FetchHandle struct {
	id          string
	step        Step
	startedAt   time.Time
	stepStarted time.Time

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	done   func(success bool)

	req     *http.Request
	pending <-chan stepResult
	addrs   []string
	conn    net.Conn
	resp    *http.Response
	body    []byte

	finished bool
	status   avalanche.FetchStatus
}

// ID returns the fetch attempt id used in logs and traces.
func (h *FetchHandle) ID() string {
	return h.id
}

// Step returns the step the fetch is in.
func (h *FetchHandle) Step() Step {
	return h.step
}

// BeginFetch starts a new fetch. It never blocks; the returned handle must be
// polled until it reaches a terminal state or abandoned.
func (c *Client) BeginFetch(ctx context.Context) *FetchHandle {
	now := c.clock.Now()
	h := &FetchHandle{
		id:          uuid.New().String(),
		step:        StepResolve,
		startedAt:   now,
		stepStarted: now,
	}

	ctx, h.span = c.tracer.Start(ctx, "forecast.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("fetch.id", h.id),
			attribute.String("url.full", c.url.String()),
		))
	h.ctx, h.cancel = context.WithCancel(ctx)

	done, err := c.breaker.Allow()
	if err != nil {
		c.finish(h, avalanche.Failed(fmt.Errorf("admitting fetch: %w", err)))
		return h
	}
	h.done = done

	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, c.url.String(), http.NoBody)
	if err != nil {
		c.fail(h, fmt.Errorf("creating request: %w", err))
		return h
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.last != nil && c.last.ETag != "" {
		req.Header.Set("If-None-Match", c.last.ETag)
	}
	req.Close = true
	h.req = req

	c.logger.Debug().
		Str("fetch_id", h.id).
		Str("url", c.url.String()).
		Msg("forecast fetch started")

	return h
}

// Poll advances the fetch by at most one step and reports its status.
// Polling a finished handle returns the same terminal status again.
func (c *Client) Poll(h *FetchHandle) avalanche.FetchStatus {
	if h.finished {
		return h.status
	}

	if h.step == StepParse {
		return c.parse(h)
	}

	if h.pending == nil {
		c.start(h)
		return avalanche.Pending()
	}

	select {
	case res := <-h.pending:
		h.pending = nil
		return c.advance(h, res)
	default:
	}

	if c.clock.Since(h.stepStarted) > c.stepTimeout {
		return c.fail(h, ErrStepTimeout)
	}
	return avalanche.Pending()
}

// Abandon stops a fetch that is no longer wanted. No result is produced and
// the connection is released.
func (c *Client) Abandon(h *FetchHandle) {
	if h.finished {
		return
	}
	c.finish(h, avalanche.Failed(ErrAbandoned))
}

// start launches the background work for the current I/O step.
func (c *Client) start(h *FetchHandle) {
	h.stepStarted = c.clock.Now()
	deadline := time.Now().Add(c.stepTimeout)
	ctx := h.ctx
	timeout := c.stepTimeout

	switch h.step {
	case StepResolve:
		resolver, host := c.resolver, c.host
		h.pending = future(func() stepResult {
			stepCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return resolveStep(stepCtx, resolver, host)
		})
	case StepConnect:
		dialer, addrs, port, tlsConfig := c.dialer, h.addrs, c.port, c.tlsConfig
		h.pending = future(func() stepResult {
			stepCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return connectStep(stepCtx, dialer, addrs, port, tlsConfig)
		})
	case StepSendRequest:
		conn, req := h.conn, h.req
		h.pending = future(func() stepResult {
			return sendStep(conn, req, deadline)
		})
	case StepReceiveHeaders:
		conn, req := h.conn, h.req
		h.pending = future(func() stepResult {
			return receiveHeadersStep(conn, req, deadline)
		})
	case StepReceiveBody:
		conn, body, limit := h.conn, h.resp.Body, c.maxBodyBytes
		h.pending = future(func() stepResult {
			return receiveBodyStep(conn, body, limit, deadline)
		})
	}
}

// advance consumes a finished I/O step and moves to the next one.
func (c *Client) advance(h *FetchHandle, res stepResult) avalanche.FetchStatus {
	if res.err != nil {
		if res.conn != nil {
			_ = res.conn.Close() //nolint:errcheck // step failed
		}
		return c.fail(h, res.err)
	}

	h.span.AddEvent("step.done", trace.WithAttributes(
		attribute.String("step", h.step.String()),
		attribute.Int64("duration_ms", c.clock.Since(h.stepStarted).Milliseconds()),
	))

	switch h.step {
	case StepResolve:
		h.addrs = res.addrs
		h.step = StepConnect
	case StepConnect:
		h.conn = res.conn
		h.step = StepSendRequest
	case StepSendRequest:
		h.step = StepReceiveHeaders
	case StepReceiveHeaders:
		h.resp = res.resp
		switch h.resp.StatusCode {
		case http.StatusOK:
			h.step = StepReceiveBody
		case http.StatusNotModified:
			return c.notModified(h)
		default:
			return c.fail(h, &StatusError{StatusCode: h.resp.StatusCode})
		}
	case StepReceiveBody:
		h.body = res.body
		h.step = StepParse
		return avalanche.Pending()
	}

	c.start(h)
	return avalanche.Pending()
}

func (c *Client) parse(h *FetchHandle) avalanche.FetchStatus {
	snap, err := c.parser.Parse(h.body, c.clock.Now(), h.resp.Header.Get("ETag"))
	if err != nil {
		return c.fail(h, err)
	}
	c.last = snap
	return c.finish(h, avalanche.Succeeded(snap))
}

func (c *Client) notModified(h *FetchHandle) avalanche.FetchStatus {
	if c.last == nil {
		return c.fail(h, ErrNoBaseline)
	}
	snap := c.last.Refetched(c.clock.Now())
	c.last = snap
	h.span.SetAttributes(attribute.Bool("http.not_modified", true))
	return c.finish(h, avalanche.Succeeded(snap))
}

func (c *Client) fail(h *FetchHandle, err error) avalanche.FetchStatus {
	return c.finish(h, avalanche.Failed(&StepError{Step: h.step, Err: err}))
}

// finish moves the handle to its terminal state and releases everything it holds.
func (c *Client) finish(h *FetchHandle, status avalanche.FetchStatus) avalanche.FetchStatus {
	failedStep := h.step
	h.finished = true
	h.status = status
	h.step = StepDone

	if h.pending != nil {
		// The in-flight step may still hand back a connection.
		pending := h.pending
		go func() {
			if res := <-pending; res.conn != nil {
				_ = res.conn.Close() //nolint:errcheck // abandoned
			}
		}()
		h.pending = nil
	}
	if h.conn != nil {
		_ = h.conn.Close() //nolint:errcheck // fetch finished
		h.conn = nil
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.done != nil {
		h.done(status.State == avalanche.FetchSucceeded)
		h.done = nil
	}
	h.body = nil

	elapsed := c.clock.Since(h.startedAt)
	outcome := "success"
	switch {
	case status.State == avalanche.FetchFailed:
		outcome = "failure"
		h.span.RecordError(status.Err)
		h.span.SetStatus(codes.Error, status.Err.Error())
		event := c.logger.Warn()
		if errors.Is(status.Err, ErrAbandoned) {
			outcome = "abandoned"
			event = c.logger.Debug()
		}
		event.Err(status.Err).
			Str("fetch_id", h.id).
			Str("step", failedStep.String()).
			Dur("elapsed", elapsed).
			Msg("forecast fetch failed")
	case !status.Snapshot.Complete:
		outcome = "partial"
		c.logger.Info().
			Str("fetch_id", h.id).
			Int("subregions", status.Snapshot.Len()).
			Dur("elapsed", elapsed).
			Msg("forecast fetch returned partial data")
	default:
		c.logger.Info().
			Str("fetch_id", h.id).
			Int("subregions", status.Snapshot.Len()).
			Dur("elapsed", elapsed).
			Msg("forecast fetch succeeded")
	}
	h.span.SetAttributes(attribute.String("fetch.outcome", outcome))
	h.span.End()

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	c.attempts.Add(context.Background(), 1, attrs)
	c.duration.Record(context.Background(), elapsed.Seconds(), attrs)

	return status
}
