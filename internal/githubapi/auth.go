package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthProvider supplies an access token for GitHub API calls.
type AuthProvider interface {
	AccessToken(ctx context.Context) (*AccessToken, error)
}

// AccessToken is a bearer token with optional expiry. Personal access
// tokens carry a zero ExpiresAt.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenAuth authenticates with a personal access token.
type TokenAuth struct {
	Token string
}

// AccessToken returns the static token.
func (t *TokenAuth) AccessToken(ctx context.Context) (*AccessToken, error) {
	if t.Token == "" {
		return nil, fmt.Errorf("github token is empty")
	}
	return &AccessToken{Token: t.Token}, nil
}

// AppAuth authenticates as a GitHub App installation: it signs an RS256
// JWT with the App private key and exchanges it for an installation
// access token, cached until shortly before expiry.
type AppAuth struct {
	AppID      string
	PrivateKey string
	// Repo ("owner/name") selects the installation.
	Repo string

	// BaseURL overrides the API endpoint in tests.
	BaseURL string

	mu     sync.Mutex
	cached *AccessToken
}

// expiryMargin renews installation tokens this long before they expire.
const expiryMargin = 2 * time.Minute

// AccessToken returns a valid installation token, reusing the cached
// one while it has at least expiryMargin of life left.
func (a *AppAuth) AccessToken(ctx context.Context) (*AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Until(a.cached.ExpiresAt) > expiryMargin {
		return a.cached, nil
	}

	jwtToken, err := a.generateJWT()
	if err != nil {
		return nil, err
	}

	installationID, err := a.getInstallationID(ctx, jwtToken)
	if err != nil {
		return nil, err
	}

	token, err := a.getInstallationAccessToken(ctx, jwtToken, installationID)
	if err != nil {
		return nil, err
	}

	a.cached = token
	return token, nil
}

// generateJWT creates the short-lived App JWT used to talk to the
// installations API.
func (a *AppAuth) generateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

func (a *AppAuth) apiBase() string {
	if a.BaseURL != "" {
		return strings.TrimRight(a.BaseURL, "/")
	}
	return "https://api.github.com"
}

// getInstallationID retrieves the App installation for the repository.
func (a *AppAuth) getInstallationID(ctx context.Context, jwtToken string) (int64, error) {
	parts := strings.Split(a.Repo, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid repo format: %s (expected owner/repo)", a.Repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/installation", a.apiBase(), parts[0], parts[1])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get installation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("GitHub API error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.ID, nil
}

// getInstallationAccessToken exchanges the App JWT for an installation
// access token.
func (a *AppAuth) getInstallationAccessToken(ctx context.Context, jwtToken string, installationID int64) (*AccessToken, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.apiBase(), installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub API error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &AccessToken{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}, nil
}
