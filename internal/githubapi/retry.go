package githubapi

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
)

// retryWithBackoff executes a function with exponential backoff,
// retrying only transient failures. The delay doubles per attempt.
func retryWithBackoff(maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	var lastErr error
	delay := baseDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Retry] Attempt %d/%d after %v delay", attempt+1, maxRetries+1, delay)
			time.Sleep(delay)
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				log.Printf("[Retry] Succeeded on attempt %d/%d", attempt+1, maxRetries+1)
			}
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			log.Printf("[Retry] Retryable error on attempt %d/%d: %v", attempt+1, maxRetries+1, lastErr)
		}
	}

	log.Printf("[Retry] All %d attempts failed, giving up", maxRetries+1)
	return lastErr
}

// isRetryableError reports whether an error is transient. Server-side
// errors, secondary rate limits and connection-level failures retry;
// everything else fails immediately.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode >= http.StatusInternalServerError
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"eof",
		"timeout",
		"connection refused",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
