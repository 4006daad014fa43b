// Package authority is the transport adapter for the remote license
// authority. It performs one HTTP+JSON exchange per call and folds every
// failure into the error taxonomy of the errors package.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
)

const (
	// TracerName is the instrumentation scope of authority calls
	TracerName = "licenseadmin/authority"

	apiKeyHeader    = "X-API-Key"
	maxResponseSize = 4 << 20
)

// Client issues calls against the license authority.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// overwritten with the configured authority timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New builds a Client from the authority configuration.
func New(cfg config.AuthorityConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid authority base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultAuthorityTimeout
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		http:      &http.Client{},
		logger:    infrastructure.WithComponent(logger, "authority"),
		tracer:    otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = timeout

	if c.metrics == nil {
		m, err := NewMetrics(otel.Meter(infrastructure.MeterName))
		if err != nil {
			return nil, fmt.Errorf("failed to create authority metrics: %w", err)
		}
		c.metrics = m
	}

	return c, nil
}

// BaseURL returns the authority base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call performs one request and returns the raw JSON body of a 2xx
// response. A nil payload sends no body. Failures are returned as
// apierrors.ErrTimeout, apierrors.ErrUnreachable, *apierrors.RemoteRejectedError or
// *apierrors.UnknownError.
func (c *Client) Call(ctx context.Context, method, endpoint string, payload any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "authority."+strings.TrimPrefix(endpoint, "/"),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("authority.endpoint", endpoint),
		))
	defer span.End()

	start := time.Now()
	body, status, err := c.do(ctx, method, endpoint, payload)
	elapsed := time.Since(start)

	kind := apierrors.KindOf(err)
	c.metrics.record(ctx, method, endpoint, kind, elapsed)

	attrs := []any{
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		c.logger.WarnContext(ctx, "authority call failed",
			append(attrs, slog.String("kind", string(kind)), slog.String("error", err.Error()))...)
		return nil, err
	}

	c.logger.DebugContext(ctx, "authority call completed", attrs...)
	return body, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (json.RawMessage, int, error) {
	target := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, &apierrors.UnknownError{Detail: fmt.Sprintf("encode %s payload: %v", endpoint, err), Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, &apierrors.UnknownError{Detail: fmt.Sprintf("build %s %s: %v", method, endpoint, err), Cause: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, classify(method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, classify(method, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &apierrors.RemoteRejectedError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(raw, resp.Status),
		}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		trimmed = []byte("{}")
	}
	if !json.Valid(trimmed) {
		return nil, resp.StatusCode, &apierrors.UnknownError{
			Detail: fmt.Sprintf("%s %s returned a non-JSON body", method, endpoint),
		}
	}

	return json.RawMessage(trimmed), resp.StatusCode, nil
}

// classify maps a transport error onto the taxonomy. Timeouts are checked
// first because a dial that times out is still a timeout.
func classify(method, endpoint string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%s %s: %w", method, endpoint, apierrors.ErrTimeout)
	case isUnreachable(err):
		return fmt.Errorf("%s %s: %w", method, endpoint, apierrors.ErrUnreachable)
	default:
		return &apierrors.UnknownError{Detail: fmt.Sprintf("%s %s: %v", method, endpoint, err), Cause: err}
	}
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// extractMessage prefers the JSON "message" field, then "error", then the raw body.
func extractMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}

	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fallback
}
