// Package http provides a reusable HTTP client with retry logic for provider
// transports that are not covered by an SDK.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// ClientConfig configures the retrying HTTP client.
type ClientConfig struct {
	Timeout           time.Duration     `json:"timeout,omitempty"`
	MaxRetries        int               `json:"max_retries,omitempty"`
	BaseRetryDelay    time.Duration     `json:"base_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration     `json:"max_retry_delay,omitempty"`
	BackoffMultiplier float64           `json:"backoff_multiplier,omitempty"`
	RetryableStatus   []int             `json:"retryable_status,omitempty"`
	Headers           map[string]string `json:"headers,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
}

// Client wraps http.Client with exponential-backoff retries on transient
// status codes.
type Client struct {
	client *http.Client
	config ClientConfig
}

// NewClient creates a client, filling unset config fields with defaults.
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.BaseRetryDelay == 0 {
		config.BaseRetryDelay = time.Second
	}
	if config.MaxRetryDelay == 0 {
		config.MaxRetryDelay = 30 * time.Second
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2.0
	}
	if len(config.RetryableStatus) == 0 {
		config.RetryableStatus = []int{429, 500, 502, 503, 504}
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	if config.UserAgent == "" {
		config.UserAgent = "chat-runtime-kit/1.0"
	}
	config.Headers["User-Agent"] = config.UserAgent

	return &Client{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// Do executes the request, retrying transient failures with exponential
// backoff. The caller owns the returned response body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for key, value := range c.config.Headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	var resp *http.Response
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err = c.client.Do(req.Clone(ctx))
		if err != nil {
			continue
		}
		if c.retryableStatus(resp.StatusCode) && attempt < c.config.MaxRetries {
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, err)
	}
	return resp, nil
}

// PostJSON sends a JSON-encoded POST request.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	req, err := NewJSONRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// ReadError drains the response body into an APIError. Intended for non-2xx
// responses; the body is closed.
func ReadError(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}

// APIError is a non-2xx response from a provider endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (status=%d): %s", e.StatusCode, e.Body)
}

// NewJSONRequest builds a request with a JSON-encoded body and content type.
func NewJSONRequest(method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) retryDelay(attempt int) time.Duration {
	delay := float64(c.config.BaseRetryDelay) * math.Pow(c.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(c.config.MaxRetryDelay) {
		delay = float64(c.config.MaxRetryDelay)
	}
	return time.Duration(delay)
}

func (c *Client) retryableStatus(status int) bool {
	for _, s := range c.config.RetryableStatus {
		if s == status {
			return true
		}
	}
	return false
}
