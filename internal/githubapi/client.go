// Package githubapi is the GitHub client layer: REST operations via
// go-github, a thin GraphQL Do for everything Projects v2, retry with
// exponential backoff, and a per-run call budget against the rate
// limit.
package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// Client talks to the GitHub API for a single repository.
type Client struct {
	owner string
	repo  string

	auth AuthProvider
	rest *github.Client

	httpClient *http.Client
	graphqlURL string

	maxRetries int
	baseDelay  time.Duration

	budget *Budget

	// ensured caches labels already checked or created this run.
	ensuredMu sync.Mutex
	ensured   map[string]bool
}

// NewClient creates a client for the repository ("owner/name" split by
// the caller) using the given auth provider.
func NewClient(owner, repo string, auth AuthProvider) *Client {
	c := &Client{
		owner:      owner,
		repo:       repo,
		auth:       auth,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		graphqlURL: "https://api.github.com/graphql",
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
	}

	oc := oauth2.NewClient(context.Background(), &providerTokenSource{auth: auth})
	oc.Timeout = 30 * time.Second
	c.rest = github.NewClient(oc)

	return c
}

// WithRetry overrides the retry policy.
func (c *Client) WithRetry(maxRetries int, baseDelay time.Duration) *Client {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	if baseDelay > 0 {
		c.baseDelay = baseDelay
	}
	return c
}

// WithBudget attaches a call budget tracker.
func (c *Client) WithBudget(b *Budget) *Client {
	c.budget = b
	return c
}

// WithBaseURLs points the client at a test server.
func (c *Client) WithBaseURLs(restURL, graphqlURL string) *Client {
	if restURL != "" {
		base, err := url.Parse(strings.TrimRight(restURL, "/") + "/")
		if err == nil {
			c.rest.BaseURL = base
			c.rest.UploadURL = base
		}
	}
	if graphqlURL != "" {
		c.graphqlURL = graphqlURL
	}
	return c
}

// Owner returns the repository owner login.
func (c *Client) Owner() string { return c.owner }

// Repo returns the repository name.
func (c *Client) Repo() string { return c.repo }

// FullName returns "owner/name".
func (c *Client) FullName() string { return c.owner + "/" + c.repo }

// retry runs fn under the client's retry policy, recording the call
// against the budget.
func (c *Client) retry(fn func() error) error {
	if c.budget != nil {
		if err := c.budget.CheckLimit(); err != nil {
			return err
		}
		c.budget.Record()
	}
	return retryWithBackoff(c.maxRetries, c.baseDelay, fn)
}

// RateLimit returns the remaining and total core API quota.
func (c *Client) RateLimit(ctx context.Context) (remaining, limit int, err error) {
	var limits *github.RateLimits
	err = c.retry(func() error {
		var rerr error
		limits, _, rerr = c.rest.RateLimit.Get(ctx)
		return rerr
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch rate limit: %w", err)
	}

	core := limits.GetCore()
	if core == nil {
		return 0, 0, fmt.Errorf("rate limit response missing core resource")
	}

	if c.budget != nil {
		c.budget.Observe(core.Remaining)
	}
	return core.Remaining, core.Limit, nil
}

// providerTokenSource adapts AuthProvider to oauth2.TokenSource so the
// REST transport refreshes App installation tokens transparently.
type providerTokenSource struct {
	auth AuthProvider
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.auth.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token.Token,
		Expiry:      token.ExpiresAt,
	}, nil
}
