// Package erpnext is a thin client for the ERPNext/Frappe REST API.
//
// Every call carries the caller's upstream session cookie (sid); the client
// itself is stateless and safe for concurrent use.
package erpnext

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/bff/internal/infrastructure/logger"
)

const (
	tracerName       = "github.com/erp/bff/internal/infrastructure/erpnext"
	sessionCookie    = "sid"
	guestSessionSID  = "Guest"
	contentTypeJSON  = "application/json"
	contentTypeForm  = "application/x-www-form-urlencoded"
	headerRetryAfter = "Retry-After"
)

// Client talks to a single ERPNext site
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	limiter         *rate.Limiter
	retry           RetryConfig
	maxResponseSize int64
	tracer          trace.Tracer
	metrics         *Metrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics records every call in m
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider uses tp instead of the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// NewClient creates a client for cfg.BaseURL
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("erpnext: parse base URL: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev sites
	}

	limit := rate.Inf
	if cfg.RateLimitQPS > 0 {
		limit = rate.Limit(cfg.RateLimitQPS)
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			// ERPNext redirects on session expiry; surface the original status instead.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:         rate.NewLimiter(limit, cfg.RateLimitBurst),
		retry:           cfg.Retry,
		maxResponseSize: cfg.MaxResponseSize,
		tracer:          otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the site URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one upstream call
type request struct {
	op      string // span and metric name, e.g. "get_list"
	method  string
	path    string // escaped path below the base URL
	query   url.Values
	form    url.Values
	body    any
	sid     string
	doctype string
}

// response is a fully read upstream response
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) cookies() []*http.Cookie {
	return (&http.Response{Header: r.header}).Cookies()
}

// do executes req, retrying idempotent calls, and maps HTTP errors to *Error
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	ctx, span := c.tracer.Start(ctx, "erpnext."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("erpnext.doctype", req.doctype),
		),
	)
	defer span.End()

	start := time.Now()
	resp, attempts, err := c.execute(ctx, req)
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.status)
		span.SetAttributes(attribute.Int("http.response.status_code", resp.status))
	}
	span.SetAttributes(attribute.Int("erpnext.attempts", attempts))
	c.metrics.observe(req.op, req.doctype, status, time.Since(start))

	log := logger.L(ctx).With(
		zap.String("erpnext_op", req.op),
		zap.String("doctype", req.doctype),
		zap.String("status", status),
		zap.Int("attempts", attempts),
		zap.Duration("duration", time.Since(start)),
	)

	if err == nil && resp.status >= http.StatusBadRequest {
		err = parseError(resp.status, resp.body)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug("erpnext call failed", zap.Error(err))
		return nil, err
	}
	log.Debug("erpnext call")
	return resp, nil
}

// execute runs the attempt loop. Only GETs are retried.
func (c *Client) execute(ctx context.Context, req request) (*response, int, error) {
	payload, contentType, err := encodeBody(req)
	if err != nil {
		return nil, 0, err
	}
	target := c.resolve(req.path, req.query)

	retries := 0
	if req.method == http.MethodGet {
		retries = c.retry.MaxRetries
	}

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, attempt - 1, transportError(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bytesReader(payload))
		if err != nil {
			return nil, attempt, fmt.Errorf("erpnext: build request: %w", err)
		}
		httpReq.Header.Set("Accept", contentTypeJSON)
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
		if req.sid != "" {
			httpReq.AddCookie(&http.Cookie{Name: sessionCookie, Value: req.sid})
		}

		resp, err := c.httpClient.Do(httpReq)
		var out *response
		if err == nil {
			out, err = c.read(resp)
		}
		var upstream *Error
		if errors.As(err, &upstream) {
			return nil, attempt, upstream
		}

		if attempt > retries || ctx.Err() != nil || !c.retry.ShouldRetry(resp, err) {
			if err != nil {
				return nil, attempt, transportError(err)
			}
			return out, attempt, nil
		}

		delay := c.calculateBackoff(attempt)
		if resp != nil {
			if ra := retryAfter(resp.Header.Get(headerRetryAfter)); ra > delay {
				delay = min(ra, c.retry.MaxDelay)
			}
		}
		c.metrics.retried(req.op, req.doctype)
		logger.L(ctx).Warn("retrying erpnext call",
			zap.String("erpnext_op", req.op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, transportError(ctx.Err())
		case <-timer.C:
		}
	}
}

// read drains resp through the size limit
func (c *Client) read(resp *http.Response) (*response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, &Error{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("response exceeds %d bytes", c.maxResponseSize),
			kind:    ErrResponseTooLarge,
		}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// calculateBackoff returns RetryDelay * Multiplier^(attempt-1) capped at MaxDelay, with +-25% jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retry.RetryDelay) * math.Pow(c.retry.Multiplier, float64(attempt-1))
	if delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	jitter := delay * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(delay + jitter)
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	u.Path, _ = url.PathUnescape(u.RawPath)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func encodeBody(req request) ([]byte, string, error) {
	switch {
	case req.form != nil:
		return []byte(req.form.Encode()), contentTypeForm, nil
	case req.body != nil:
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, "", fmt.Errorf("erpnext: encode body: %w", err)
		}
		return b, contentTypeJSON, nil
	default:
		return nil, "", nil
	}
}

func bytesReader(b []byte) io.Reader {
	if b == nil {
		return http.NoBody
	}
	return bytes.NewReader(b)
}

// retryAfter parses a delay-seconds Retry-After header
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// resourcePath builds /api/resource/{doctype}[/{name}] with escaped segments
func resourcePath(doctype string, name ...string) string {
	p := "/api/resource/" + url.PathEscape(doctype)
	for _, n := range name {
		p += "/" + url.PathEscape(n)
	}
	return p
}

func methodPath(method string) string {
	return "/api/method/" + url.PathEscape(method)
}
