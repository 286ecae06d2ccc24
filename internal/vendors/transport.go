// Package vendors holds the HTTP plumbing shared by the helpdesk API clients.
package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/pkg/circuitbreaker"
	"github.com/nicetoya86/ticket/pkg/retry"
)

// ErrMissingCredentials is returned by a client whose credentials are not
// configured. Callers treat it as "source unavailable".
var ErrMissingCredentials = errors.New("vendor credentials are not configured")

// StatusError is a non-2xx response.
type StatusError struct {
	Vendor string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d: %s", e.Vendor, e.Status, e.Body)
}

// Retryable reports whether the request may succeed when sent again.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Transport sends GET requests that decode JSON, retrying transient
// failures behind a per-vendor circuit breaker.
type Transport struct {
	vendor   string
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	logger   *zap.Logger
}

func NewTransport(vendor string, timeout time.Duration, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.InitialDelay = 500 * time.Millisecond
	retryCfg.Logger = logger

	return &Transport{
		vendor: vendor,
		http:   &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New(vendor, circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			OpenTimeout:      30 * time.Second,
			Logger:           logger,
			IsFailure:        countsAgainstBreaker,
		}),
		retryCfg: retryCfg,
		logger:   logger,
	}
}

// Client errors such as 404 say nothing about upstream health.
func countsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// WithRetry replaces the retry policy; tests use it to shorten delays.
func (t *Transport) WithRetry(cfg retry.Config) *Transport {
	if cfg.Logger == nil {
		cfg.Logger = t.logger
	}
	t.retryCfg = cfg
	return t
}

// GetJSON fetches url and decodes the body into dst. prepare may add
// authentication headers.
func (t *Transport) GetJSON(ctx context.Context, url string, prepare func(*http.Request), dst any) error {
	return retry.Do(ctx, t.retryCfg, func() error {
		err := t.breaker.Execute(ctx, func() error {
			return t.get(ctx, url, prepare, dst)
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return retry.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return retry.Permanent(err)
		}
		return err
	})
}

func (t *Transport) get(ctx context.Context, url string, prepare func(*http.Request), dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if prepare != nil {
		prepare(req)
	}

	start := time.Now()
	resp, err := t.http.Do(req)
	metrics.VendorDuration.WithLabelValues(t.vendor).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VendorRequests.WithLabelValues(t.vendor, "error").Inc()
		return fmt.Errorf("%s request failed: %w", t.vendor, err)
	}
	defer resp.Body.Close()
	metrics.VendorRequests.WithLabelValues(t.vendor, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		t.logger.Warn("Vendor request rejected",
			zap.String("vendor", t.vendor),
			zap.Int("status", resp.StatusCode),
			zap.String("url", req.URL.Path),
		)
		return &StatusError{Vendor: t.vendor, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode %s response: %w", t.vendor, err))
	}
	return nil
}
