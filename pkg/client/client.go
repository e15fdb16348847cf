// Package client is a minimal SDK for posting events to an agentlensd
// ingest gateway. It implements the retry policy spec §7 assigns to
// client SDKs: RateLimit (honoring Retry-After) and Unavailable errors
// are retried with bounded exponential backoff; every other error kind
// is returned immediately.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentkitai/agentlens-sub008/pkg/eventmodel"
)

// RetryPolicy controls the bounded exponential backoff spec §7 describes:
// base 100ms, cap 10s, jitter, default ceiling of 3 attempts.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy matches spec §7's stated numbers exactly.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, MaxAttempts: 3}
}

// Client posts event batches to one agentlensd ingest gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option { return func(c *Client) { c.retry = p } }

// New builds a Client targeting baseURL (e.g. "https://ingest.example.com")
// authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// httpError carries the status code and any Retry-After hint from a
// non-2xx response, so retryStatus can classify it without re-parsing.
type httpError struct {
	status     int
	retryAfter time.Duration
	body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("agentlens ingest: status %d: %s", e.status, e.body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// PostEvents sends one batch of events, retrying RateLimit (429) and
// Unavailable (503) responses per the configured RetryPolicy. Every other
// non-2xx status is returned immediately without retry.
func (c *Client) PostEvents(ctx context.Context, events []eventmodel.Event) ([]string, error) {
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}

	var ids []string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/events", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // connection errors are retried
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode/100 != 2 {
			herr := &httpError{status: resp.StatusCode, body: string(respBody)}
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					herr.retryAfter = time.Duration(secs) * time.Second
				}
			}
			if !retryable(resp.StatusCode) {
				return backoff.Permanent(herr)
			}
			return herr
		}

		var decoded struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		ids = decoded.IDs
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.BaseDelay
	bo.MaxInterval = c.retry.MaxDelay
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0

	maxRetries := uint64(0)
	if c.retry.MaxAttempts > 1 {
		maxRetries = uint64(c.retry.MaxAttempts - 1)
	}
	withMax := backoff.WithMaxRetries(bo, maxRetries)
	withCtx := backoff.WithContext(withMax, ctx)

	if err := backoff.Retry(op, withCtx); err != nil {
		return nil, err
	}
	return ids, nil
}
