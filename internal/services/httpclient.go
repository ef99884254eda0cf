package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/models"
)

// HTTPClient wraps the standard http.Client with retry logic and configuration.
// Clients derived with WithTimeout share one transport, so connections are reused.
type HTTPClient struct {
	client *http.Client
	policy lib.RetryPolicy
	logger *lib.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewHTTPClient creates an HTTP client with timeout and retry configuration
func NewHTTPClient(timeout time.Duration, retryConfig models.RetryConfig, logger *lib.Logger) *HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		policy: lib.NewRetryPolicyFromModel(retryConfig),
		logger: logger,
		sleep:  lib.Sleep,
	}
}

// WithTimeout returns a client sharing this client's transport and retry policy
// but applying a different per-call timeout
func (c *HTTPClient) WithTimeout(timeout time.Duration) *HTTPClient {
	clone := *c
	clone.client = &http.Client{
		Transport: c.client.Transport,
		Timeout:   timeout,
	}
	return &clone
}

// Policy returns the retry policy in effect
func (c *HTTPClient) Policy() lib.RetryPolicy {
	return c.policy
}

// Do executes an HTTP request with retry logic for transient errors.
// After retries are exhausted the last response (or transport error) is returned as-is.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Buffer the body once so every attempt sends the same bytes
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	schedule := c.policy.NewBackOff()
	req = req.WithContext(ctx)

	for attempt := 0; ; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		startTime := time.Now()
		lib.LogServiceCall(c.logger, req.URL.Host, req.URL.Path, req.Method)
		resp, err := c.client.Do(req)
		duration := time.Since(startTime)

		if err != nil {
			// Caller gave up; do not retry
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			if !c.policy.AllowsMethod(req.Method) || !lib.IsNetworkError(err) {
				return nil, err
			}

			wait := schedule.NextBackOff()
			if wait == backoff.Stop {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}

			lib.LogRetry(c.logger, req.URL.String(), attempt, c.policy.MaxRetries, wait, err)
			if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		lib.LogServiceResponse(c.logger, req.URL.Host, resp.StatusCode, duration)

		// Non-retryable status: return immediately so caller can read error details
		if !c.policy.ShouldRetryStatus(req.Method, resp.StatusCode) {
			return resp, nil
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			return resp, nil
		}

		if retryAfter := lib.RetryAfter(resp.Header, c.policy.MaxBackoff); retryAfter > wait {
			wait = retryAfter
		}

		lib.LogRetry(c.logger, req.URL.String(), attempt, c.policy.MaxRetries, wait, resp.Status)

		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// Get performs an HTTP GET request with retry logic
func (c *HTTPClient) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	copyHeader(req.Header, header)

	return c.Do(ctx, req)
}

// Post performs an HTTP POST request with retry logic
func (c *HTTPClient) Post(ctx context.Context, url string, header http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	copyHeader(req.Header, header)

	return c.Do(ctx, req)
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
}
