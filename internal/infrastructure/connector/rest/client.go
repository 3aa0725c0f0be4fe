// Package rest is the HTTP plumbing shared by the platform connectors: a
// paced JSON client and helpers reading typed values out of payloads.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storeshift/backend/internal/domain/migration"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ErrUnavailable means the platform could not be reached at all
var ErrUnavailable = errors.New("rest: platform unavailable")

// StatusError is a non-2xx platform response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options configures the HTTP behavior of a connector
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	RateLimit  float64 // requests per second; 0 disables pacing
	Burst      int
	UserAgent  string
	Logger     *zap.Logger
}

// Option mutates Options
type Option func(*Options)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRateLimit paces outbound requests with a token bucket
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) {
		o.RateLimit = perSecond
		o.Burst = burst
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(o *Options) { o.UserAgent = ua }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// NewOptions applies opts over the defaults
func NewOptions(opts ...Option) Options {
	o := Options{
		Timeout:   30 * time.Second,
		UserAgent: "storeshift/1.0",
		Logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Authenticator decorates an outgoing request with credentials
type Authenticator func(*http.Request)

// BasicAuth authenticates with HTTP basic credentials
func BasicAuth(user, password string) Authenticator {
	return func(r *http.Request) { r.SetBasicAuth(user, password) }
}

// HeaderAuth authenticates with a static header
func HeaderAuth(name, value string) Authenticator {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

// Request describes one call. Path is resolved against the client base URL
// unless it is already absolute.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Auth   Authenticator // overrides the client default
}

// Response carries what connectors need besides the decoded body
type Response struct {
	StatusCode int
	Header     http.Header
}

// Client is a JSON client bound to one platform base URL
type Client struct {
	platform  migration.PlatformKind
	base      *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	auth      Authenticator
	userAgent string
	logger    *zap.Logger
}

// NewClient creates a client for baseURL. baseURL must be absolute.
func NewClient(platform migration.PlatformKind, baseURL string, auth Authenticator, o Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", migration.ErrInvalidConnection, baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		platform:  platform,
		base:      u,
		http:      o.HTTPClient,
		auth:      auth,
		userAgent: o.UserAgent,
		logger:    o.Logger.Named("rest").With(zap.String("platform", platform.String())),
	}
	if o.RateLimit > 0 {
		burst := o.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the resolved base URL
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Get is a GET request decoding the body into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post is a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do sends req after waiting for the rate limiter and decodes a 2xx JSON
// body into out (if non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.platform, err)
		}
		body = bytes.NewReader(raw)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.platform, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	auth := c.auth
	if req.Auth != nil {
		auth = req.Auth
	}
	if auth != nil {
		auth(httpReq)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", c.platform, err)
	}
	c.logger.Debug("platform request",
		zap.String("method", method),
		zap.String("url", httpReq.URL.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	result := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if resp.StatusCode >= 400 {
		return result, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return result, fmt.Errorf("%s: failed to parse response: %w", c.platform, err)
		}
	}
	return result, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", fmt.Errorf("%s: invalid path %q: %w", c.platform, path, err)
	}
	u := c.base.ResolveReference(ref)
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// errorMessage extracts a human message from common platform error bodies:
// {"message": ...}, {"errors": ...} or a plain string.
func errorMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if len(body.Errors) > 0 {
			var s string
			if json.Unmarshal(body.Errors, &s) == nil {
				return s
			}
			return truncate(string(body.Errors), 300)
		}
	}
	return truncate(strings.TrimSpace(string(raw)), 300)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
