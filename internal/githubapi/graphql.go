package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// graphqlRequest is the GraphQL request body.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQL executes a query or mutation against the GitHub GraphQL
// endpoint and decodes the data envelope into out. A response carrying
// errors produces an error with the first message.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	return c.retry(func() error {
		return c.graphqlOnce(ctx, query, variables, out)
	})
}

func (c *Client) graphqlOnce(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(graphqlRequest{Query: query, Variables: variables}); err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql http error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql status %d: %s", resp.StatusCode, string(body))
	}

	var wrapper struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return fmt.Errorf("decode graphql envelope: %w", err)
	}
	if len(wrapper.Errors) > 0 {
		// The first error message is enough to act on.
		return fmt.Errorf("graphql error: %s", wrapper.Errors[0].Message)
	}
	if len(wrapper.Data) == 0 && out != nil {
		wrapper.Data = json.RawMessage("null")
	}
	if out != nil {
		if err := json.Unmarshal(wrapper.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}
