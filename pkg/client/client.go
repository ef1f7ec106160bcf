// Package client provides a Go client for the siteverify proxy and a
// submit gate that mirrors the browser contact form flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPath is the route the bundled site posts tokens to.
const DefaultPath = "/.netlify/functions/verify-recaptcha"

// Client is a siteverify API client
type Client struct {
	baseURL    string
	path       string
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

// WithPath overrides the verification route, e.g. "/api/v1/verify-recaptcha".
func WithPath(path string) Option {
	return func(client *Client) {
		client.path = path
	}
}

// New creates a new siteverify client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Result is the proxy's reply. Error is only set on 4xx/5xx replies.
type Result struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"errorCodes"`
	Hostname   *string  `json:"hostname"`
	Error      string   `json:"error,omitempty"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// Verify submits token to the proxy. Any reply counts as an answer, whatever
// its status: a body that does not decode yields a zero Result. Only
// transport failures are returned as errors.
func (c *Client) Verify(ctx context.Context, token string) (*Result, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(verifyRequest{Token: token}); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading verify response: %w", err)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return &Result{}, nil
	}
	return &result, nil
}
