// Package llm holds what the completion service adapters share: HTTP status
// capture and mapping of provider failures onto the output.Err* sentinels.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"engagement-advisor/internal/application/port/output"
)

// StatusTransport records the status of the last response and logs each
// round trip. Provider SDKs hide the HTTP status behind their own error types;
// the recorded status lets Classify treat every backend alike.
type StatusTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
	last   atomic.Int32
}

func NewStatusTransport(base http.RoundTripper, logger output.LoggerPort) *StatusTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &StatusTransport{base: base, logger: logger}
}

func (t *StatusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.last.Store(0)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP request failed", "method", req.Method, "host", req.URL.Host, "error", err)
		return nil, err
	}

	t.last.Store(int32(resp.StatusCode))
	t.logger.Debug("HTTP response",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"statusCode", resp.StatusCode,
		"duration", time.Since(start).String(),
	)
	return resp, nil
}

// LastStatus is 0 until a response has been received.
func (t *StatusTransport) LastStatus() int {
	return int(t.last.Load())
}

// Client wraps the transport in an http.Client bounded by timeout.
func (t *StatusTransport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

type statusCoder interface {
	HTTPStatusCode() int
}

// Classify wraps err from provider with the matching sentinel. status is the
// last HTTP status seen, or 0 when unknown.
func Classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{output.ErrAuthentication, output.ErrServiceUnavailable, output.ErrTimeout, output.ErrModel} {
		if errors.Is(err, sentinel) {
			return fmt.Errorf("%s: %w", provider, err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}

	if status == 0 {
		var sc statusCoder
		if errors.As(err, &sc) {
			status = sc.HTTPStatusCode()
		}
	}

	return fmt.Errorf("%s: %w: %w", provider, sentinelFor(status, err), err)
}

func sentinelFor(status int, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return output.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return output.ErrTimeout
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return output.ErrAuthentication
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return output.ErrTimeout
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return output.ErrServiceUnavailable
	case status >= http.StatusBadRequest:
		return output.ErrModel
	}

	if netErr != nil {
		return output.ErrServiceUnavailable
	}
	return output.ErrModel
}
