// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// sharedTransport is reused across remote clients: connection pooling
// matters when every turn is a fresh request to the same host.
var sharedTransport = &http.Transport{
	MaxIdleConns:        10,
	MaxIdleConnsPerHost: 5,
	IdleConnTimeout:     90 * time.Second,
}

// RemoteClient speaks the same generate API as the local runtime, against a
// remote inference server. It adds retry with exponential backoff and a
// client-side request rate limit; the contract is otherwise identical, so a
// remote server is a drop-in substitute.
type RemoteClient struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	limiter    *rate.Limiter
}

// NewRemoteClient creates a client for a base URL without a trailing slash.
func NewRemoteClient(baseURL string) *RemoteClient {
	return &RemoteClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: sharedTransport,
		},
		maxRetries: 3,
		// One request per second is plenty: turns are human-paced.
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// WithTimeout sets the per-request timeout.
func (c *RemoteClient) WithTimeout(timeout time.Duration) *RemoteClient {
	c.client = &http.Client{Timeout: timeout, Transport: sharedTransport}
	return c
}

// WithMaxRetries sets how many times transient failures are retried.
func (c *RemoteClient) WithMaxRetries(n int) *RemoteClient {
	c.maxRetries = n
	return c
}

// WithRateLimit replaces the request limiter.
func (c *RemoteClient) WithRateLimit(l *rate.Limiter) *RemoteClient {
	c.limiter = l
	return c
}

// BaseURL returns the configured endpoint.
func (c *RemoteClient) BaseURL() string {
	return c.baseURL
}

// Generate implements Generator with retry on transient failures.
func (c *RemoteClient) Generate(ctx context.Context, prompt string, params Params, stop []string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "rate limit wait interrupted", Cause: err}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", &ClientError{Type: ErrTypeConnection, Message: "generate canceled during backoff", Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		text, err := doGenerate(ctx, c.client, c.baseURL, prompt, params, stop)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}

	return "", &ClientError{
		Type:    ErrTypeConnection,
		Message: fmt.Sprintf("generate failed after %d retries", c.maxRetries),
		Cause:   lastErr,
	}
}

// EstimateBudget implements Generator.
func (c *RemoteClient) EstimateBudget(contextSize int, ratio float64, reservedTokens int) int {
	return CharBudget(contextSize, ratio, reservedTokens)
}

// isRetryable reports whether an error is worth another attempt: network
// hiccups and 5xx responses are, bad requests and parse failures are not.
func isRetryable(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	switch ce.Type {
	case ErrTypeConnection, ErrTypeTimeout, ErrTypeNotRunning:
		return true
	case ErrTypeServer:
		// Status text is carried in the message; 5xx counts as transient.
		return strings.Contains(ce.Message, "status 5")
	default:
		return false
	}
}
