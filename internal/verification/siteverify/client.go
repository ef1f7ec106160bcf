// Package siteverify calls a CAPTCHA verification authority's siteverify
// endpoint. reCAPTCHA, hCaptcha and Turnstile share the same wire format.
package siteverify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vxnlabs/siteverify/internal/observability/metrics"
	"github.com/vxnlabs/siteverify/internal/verification/domain"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = "recaptcha"

// maxResponseBytes caps how much of the authority reply is read.
const maxResponseBytes = 1 << 20

var endpoints = map[string]string{
	"recaptcha": "https://www.google.com/recaptcha/api/siteverify",
	"hcaptcha":  "https://api.hcaptcha.com/siteverify",
	"turnstile": "https://challenges.cloudflare.com/turnstile/v0/siteverify",
}

var tracer = otel.Tracer("github.com/vxnlabs/siteverify/internal/verification/siteverify")

// ErrMalformedResponse is returned when the authority reply is not a JSON object.
var ErrMalformedResponse = errors.New("malformed verification response")

// Endpoint returns the siteverify URL for a known provider. An empty
// provider selects DefaultProvider.
func Endpoint(provider string) (string, bool) {
	if provider == "" {
		provider = DefaultProvider
	}
	u, ok := endpoints[strings.ToLower(provider)]
	return u, ok
}

// Client posts tokens to a verification authority.
type Client struct {
	endpoint   string
	provider   string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout bounds the whole outbound exchange. Zero means no limit.
// It never mutates a client passed through WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.timeout = d
	}
}

// WithProvider sets the provider name used in metric labels and span attributes.
func WithProvider(name string) Option {
	return func(client *Client) {
		client.provider = name
	}
}

// New creates a client for the given siteverify endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		provider: DefaultProvider,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// Verify sends one form-encoded verification request and returns the
// decoded reply. The HTTP status is ignored; only the body matters.
func (c *Client) Verify(ctx context.Context, secret, token, remoteIP string) (domain.Outcome, error) {
	ctx, span := tracer.Start(ctx, "siteverify.Verify",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("captcha.provider", c.provider),
			attribute.Bool("captcha.remoteip_present", remoteIP != ""),
		),
	)
	defer span.End()

	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(span, "transport_error", start, err)
		return nil, fmt.Errorf("posting to verification authority: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record(span, "transport_error", start, err)
		return nil, fmt.Errorf("reading verification response: %w", err)
	}

	var outcome domain.Outcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		err = fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, resp.StatusCode, err)
		c.record(span, "malformed", start, err)
		return nil, err
	}
	if outcome == nil {
		err := fmt.Errorf("%w: status %d: null body", ErrMalformedResponse, resp.StatusCode)
		c.record(span, "malformed", start, err)
		return nil, err
	}

	c.record(span, "ok", start, nil)
	return outcome, nil
}

// record reports the call on the span and in the upstream latency histogram.
func (c *Client) record(span trace.Span, outcome string, start time.Time, err error) {
	metrics.UpstreamRequest(c.provider, outcome, time.Since(start))
	span.SetAttributes(attribute.String("captcha.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}
