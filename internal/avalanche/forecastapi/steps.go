package forecastapi

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Step is a stage of the fetch state machine.
type Step int

const (
	StepResolve Step = iota
	StepConnect
	StepSendRequest
	StepReceiveHeaders
	StepReceiveBody
	StepParse
	StepDone
)

var stepNames = [...]string{
	StepResolve:        "resolve",
	StepConnect:        "connect",
	StepSendRequest:    "send_request",
	StepReceiveHeaders: "receive_headers",
	StepReceiveBody:    "receive_body",
	StepParse:          "parse",
	StepDone:           "done",
}

func (s Step) String() string {
	if s < StepResolve || s > StepDone {
		return "unknown"
	}
	return stepNames[s]
}

// Fetch errors.
var (
	ErrStepTimeout  = errors.New("step timed out")
	ErrBodyTooLarge = errors.New("response body too large")
	ErrNoAddresses  = errors.New("host resolved to no addresses")
	ErrAbandoned    = errors.New("fetch abandoned")
	ErrNoBaseline   = errors.New("not modified but no previous snapshot to reuse")
)

// StepError reports the step a fetch failed in.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StatusError is returned for any response status other than 200 or 304.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Temporary reports whether the server may answer differently on retry.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// stepResult is what an I/O step hands back to Poll.
type stepResult struct {
	addrs []string
	conn  net.Conn
	resp  *http.Response
	body  []byte
	err   error
}

// future runs fn on its own goroutine. The channel is buffered so the
// goroutine never blocks on a handle nobody polls anymore.
func future(fn func() stepResult) <-chan stepResult {
	ch := make(chan stepResult, 1)
	go func() {
		ch <- fn()
	}()
	return ch
}

func resolveStep(ctx context.Context, resolver *net.Resolver, host string) stepResult {
	if ip := net.ParseIP(host); ip != nil {
		return stepResult{addrs: []string{host}}
	}

	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return stepResult{err: fmt.Errorf("looking up %s: %w", host, err)}
	}
	if len(addrs) == 0 {
		return stepResult{err: ErrNoAddresses}
	}
	return stepResult{addrs: addrs}
}

func connectStep(ctx context.Context, dialer *net.Dialer, addrs []string, port string, tlsConfig *tls.Config) stepResult {
	var lastErr error
	for _, addr := range addrs {
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, port))
		if err != nil {
			lastErr = err
			continue
		}

		if tlsConfig == nil {
			return stepResult{conn: conn}
		}

		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close() //nolint:errcheck // handshake already failed
			lastErr = fmt.Errorf("tls handshake: %w", err)
			continue
		}
		return stepResult{conn: tlsConn}
	}
	if lastErr == nil {
		lastErr = ErrNoAddresses
	}
	return stepResult{err: fmt.Errorf("dialing: %w", lastErr)}
}

func sendStep(conn net.Conn, req *http.Request, deadline time.Time) stepResult {
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return stepResult{err: err}
	}

	w := bufio.NewWriter(conn)
	if err := req.Write(w); err != nil {
		return stepResult{err: fmt.Errorf("writing request: %w", err)}
	}
	if err := w.Flush(); err != nil {
		return stepResult{err: fmt.Errorf("writing request: %w", err)}
	}
	return stepResult{}
}

func receiveHeadersStep(conn net.Conn, req *http.Request, deadline time.Time) stepResult {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return stepResult{err: err}
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return stepResult{err: fmt.Errorf("reading response headers: %w", err)}
	}
	return stepResult{resp: resp}
}

func receiveBodyStep(conn net.Conn, body io.Reader, limit int64, deadline time.Time) stepResult {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return stepResult{err: err}
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return stepResult{err: fmt.Errorf("reading response body: %w", err)}
	}
	if int64(len(data)) > limit {
		return stepResult{err: ErrBodyTooLarge}
	}
	return stepResult{body: data}
}
