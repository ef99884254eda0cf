package lib

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trobanga/fhirpush/internal/models"
)

// RetryPolicy decides which requests are retried and how long to wait between attempts
type RetryPolicy struct {
	MaxRetries    int
	BackoffFactor time.Duration
	MaxBackoff    time.Duration
	statuses      map[int]bool
	methods       map[string]bool
}

// NewRetryPolicyFromModel creates a RetryPolicy from models.RetryConfig
func NewRetryPolicyFromModel(config models.RetryConfig) RetryPolicy {
	statuses := config.RetryableStatuses
	if len(statuses) == 0 {
		statuses = models.DefaultRetryableStatuses
	}
	methods := config.RetryableMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost}
	}

	policy := RetryPolicy{
		MaxRetries:    config.MaxRetries,
		BackoffFactor: time.Duration(config.BackoffFactorMs) * time.Millisecond,
		MaxBackoff:    time.Duration(config.MaxBackoffMs) * time.Millisecond,
		statuses:      make(map[int]bool, len(statuses)),
		methods:       make(map[string]bool, len(methods)),
	}
	for _, code := range statuses {
		policy.statuses[code] = true
	}
	for _, method := range methods {
		policy.methods[strings.ToUpper(method)] = true
	}
	return policy
}

// AllowsMethod reports whether requests with this method may be retried at all
func (p RetryPolicy) AllowsMethod(method string) bool {
	return p.methods[strings.ToUpper(method)]
}

// ClassifyHTTPStatus determines if an HTTP status is transient under this policy
func (p RetryPolicy) ClassifyHTTPStatus(statusCode int) models.ErrorType {
	if p.statuses[statusCode] {
		return models.ErrorTypeTransient
	}
	return models.ErrorTypeNonTransient
}

// ShouldRetryStatus reports whether a response with this status should be retried
func (p RetryPolicy) ShouldRetryStatus(method string, statusCode int) bool {
	return p.AllowsMethod(method) && p.ClassifyHTTPStatus(statusCode) == models.ErrorTypeTransient
}

// NewBackOff returns a fresh exponential schedule for one request:
// factor, 2*factor, 4*factor... capped at MaxBackoff, stopping after MaxRetries.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	if p.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BackoffFactor
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = p.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithMaxRetries(exp, uint64(p.MaxRetries))
}

// RetryAfter parses a Retry-After header given in seconds, capped at limit.
// Returns 0 when the header is absent or not a number of seconds.
func RetryAfter(header http.Header, limit time.Duration) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}

	wait := time.Duration(seconds) * time.Second
	if limit > 0 && wait > limit {
		return limit
	}
	return wait
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsNetworkError checks if an error is likely a network-related issue
// These are typically transient and should be retried
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation by the caller is never retried
	if errors.Is(err, context.Canceled) {
		return false
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	networkErrors := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"deadline exceeded",
	}

	for _, pattern := range networkErrors {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}
