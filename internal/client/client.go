// Package client talks to the quiz backend over HTTP. Every call retries
// server and connection failures with a linear backoff.
package client

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

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
)

var (
	// ErrRequestFailed wraps the final error of a call that exhausted its retries or was rejected.
	ErrRequestFailed = errors.New("request failed")
	// ErrServiceUnavailable marks transport-level failures (DNS, refused connections, timeouts).
	ErrServiceUnavailable = errors.New("quiz service unavailable")
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 300 * time.Millisecond
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Temporary reports whether the backend may succeed on a retry.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	HTTPClient  *http.Client
	MaxRetries  int
	RetryDelay  time.Duration
	AdminSecret string
	Logger      *zap.Logger
}

// Client is the HTTP client for the quiz backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	retryDelay  time.Duration
	adminSecret string
	logger      *zap.Logger
}

func New(baseURL string, opts Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  opts.HTTPClient,
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
		adminSecret: opts.AdminSecret,
		logger:      opts.Logger,
	}
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doJSON sends requestBody as JSON and decodes a 2xx response into responseBody.
func (c *Client) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	var encoded []byte
	if requestBody != nil {
		var err error
		if encoded, err = json.Marshal(requestBody); err != nil {
			return err
		}
	}

	return c.do(ctx, method, path, encoded, func(body io.Reader) error {
		if responseBody == nil {
			return nil
		}
		return json.NewDecoder(body).Decode(responseBody)
	})
}

// do runs one logical call with retries. handle consumes a successful body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, handle func(io.Reader) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, method, path, payload, handle)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newLinearBackOff(c.retryDelay), uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, handle func(io.Reader) error) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.adminSecret != "" {
		request.Header.Set(app.AdminSecretHeader, c.adminSecret)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}
	if err := handle(response.Body); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// linearBackOff waits delay, 2*delay, 3*delay, ... between attempts.
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func newLinearBackOff(delay time.Duration) *linearBackOff {
	return &linearBackOff{delay: delay}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.delay * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
