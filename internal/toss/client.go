// Package toss is the HTTP client for the Toss Payments core API.
package toss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wichananm65/storefront-checkout/internal/config"
	"github.com/wichananm65/storefront-checkout/internal/logger"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 300 * time.Millisecond

	// longer response bodies are cut in the log
	maxLoggedBody = 2048
)

// APIError is a non-2xx answer from the provider. It is never retried.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toss %s: %d %s: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
}

// Client calls the provider with basic auth and a bounded retry on transport
// failures.
type Client struct {
	http        *resty.Client
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithSleep replaces the backoff wait, mainly so tests can record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func NewClient(cfg config.TossConfig, opts ...Option) *Client {
	c := &Client{
		// resty retries are jittered; attempts are driven by do instead
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetBasicAuth(cfg.SecretKey, "").
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetRetryCount(0),
		timeout:     cfg.Timeout,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		sleep:       sleepCtx,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Confirm approves a payment the customer authorized on the provider page.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (*Payment, error) {
	return c.do(ctx, "payments/confirm", nil, req)
}

// Cancel refunds all or part of an approved payment.
func (c *Client) Cancel(ctx context.Context, paymentKey string, req CancelRequest) (*Payment, error) {
	return c.do(ctx, "payments/{paymentKey}/cancel", map[string]string{"paymentKey": paymentKey}, req)
}

func (c *Client) do(ctx context.Context, endpoint string, pathParams map[string]string, body any) (*Payment, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.baseDelay << (attempt - 2)
			logger.WarnContext(ctx, "toss request retry",
				"endpoint", endpoint, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		p, err := c.attempt(ctx, endpoint, pathParams, body)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("toss %s: giving up after %d attempts: %w", endpoint, c.maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, endpoint string, pathParams map[string]string, body any) (*Payment, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(actx).
		SetPathParams(pathParams).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "toss response",
		"endpoint", endpoint, "status", resp.StatusCode(), "body", loggedBody(resp.Body()))
	if !resp.IsSuccess() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Endpoint: endpoint}
		if jerr := json.Unmarshal(resp.Body(), apiErr); jerr != nil || apiErr.Code == "" {
			apiErr.Code = "UNKNOWN_ERROR"
			if apiErr.Message == "" {
				apiErr.Message = string(resp.Body())
			}
		}
		return nil, apiErr
	}

	p := new(Payment)
	if err := json.Unmarshal(resp.Body(), p); err != nil {
		return nil, fmt.Errorf("toss %s: decode response: %w", endpoint, err)
	}
	p.Raw = append(json.RawMessage(nil), resp.Body()...)
	return p, nil
}

func loggedBody(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}

// retryable is true for per-attempt timeouts and transport failures while
// the caller's context is still alive.
func retryable(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
