// Package solvedac is a small client for the public solved.ac API,
// used to decorate the daily report with a problem-solving profile
// snapshot.
package solvedac

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
)

// DefaultBaseURL is the public solved.ac API endpoint.
const DefaultBaseURL = "https://solved.ac/api/v3"

// User is the profile slice the report section renders.
type User struct {
	Handle      string `json:"handle"`
	Tier        int    `json:"tier"`
	Rating      int    `json:"rating"`
	Class       int    `json:"class"`
	SolvedCount int    `json:"solvedCount"`
	MaxStreak   int    `json:"maxStreak"`
	Rank        int    `json:"rank"`
}

// Client talks to the solved.ac API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a client against the public API.
func NewClient() *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		baseDelay:  1 * time.Second,
	}
}

// WithBaseURL points the client at a different endpoint. Tests use it
// with httptest servers.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// WithRetry overrides the retry policy.
func (c *Client) WithRetry(maxRetries int, baseDelay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.baseDelay = baseDelay
	return c
}

// UserShow fetches a user profile by handle.
func (c *Client) UserShow(ctx context.Context, handle string) (*User, error) {
	if handle == "" {
		return nil, fmt.Errorf("solvedac: handle is required")
	}

	endpoint := fmt.Sprintf("%s/user/show?handle=%s", c.baseURL, url.QueryEscape(handle))

	var user User
	err := c.retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return &NotFoundError{Handle: handle}
		case resp.StatusCode != http.StatusOK:
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		return json.Unmarshal(body, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("solvedac user/show %s: %w", handle, err)
	}
	return &user, nil
}

// retry runs fn with exponential backoff, retrying server-side and
// connection-level failures only.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	delay := c.baseDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError ||
			statusErr.Code == http.StatusTooManyRequests
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection refused", "connection reset", "eof"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// NotFoundError reports an unknown handle.
type NotFoundError struct {
	Handle string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.Handle)
}

// StatusError reports an unexpected API status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
