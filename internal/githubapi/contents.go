package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// RepoFile is a file fetched from the repository contents API.
type RepoFile struct {
	Path    string
	SHA     string
	Content string
}

// GetReadme fetches the repository README. Returns nil without error
// when the repository has none.
func (c *Client) GetReadme(ctx context.Context) (*RepoFile, error) {
	var readme *github.RepositoryContent
	err := c.retry(func() error {
		var rerr error
		readme, _, rerr = c.rest.Repositories.GetReadme(ctx, c.owner, c.repo, nil)
		if rerr != nil {
			var respErr *github.ErrorResponse
			if errors.As(rerr, &respErr) && respErr.Response.StatusCode == http.StatusNotFound {
				readme = nil
				return nil
			}
		}
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get README: %w", err)
	}
	if readme == nil {
		return nil, nil
	}

	content, err := readme.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode README: %w", err)
	}

	return &RepoFile{
		Path:    readme.GetPath(),
		SHA:     readme.GetSHA(),
		Content: content,
	}, nil
}

// GetFile fetches a file from the default branch. Returns nil without
// error when the path does not exist.
func (c *Client) GetFile(ctx context.Context, path string) (*RepoFile, error) {
	var fileContent *github.RepositoryContent
	err := c.retry(func() error {
		var rerr error
		fileContent, _, _, rerr = c.rest.Repositories.GetContents(ctx, c.owner, c.repo, path, nil)
		if rerr != nil {
			var respErr *github.ErrorResponse
			if errors.As(rerr, &respErr) && respErr.Response.StatusCode == http.StatusNotFound {
				fileContent = nil
				return nil
			}
		}
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	if fileContent == nil {
		return nil, nil
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &RepoFile{
		Path:    fileContent.GetPath(),
		SHA:     fileContent.GetSHA(),
		Content: content,
	}, nil
}

// UpdateFile commits new content over an existing file.
func (c *Client) UpdateFile(ctx context.Context, path, message, content, sha string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		SHA:     github.String(sha),
	}
	err := c.retry(func() error {
		_, _, rerr := c.rest.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
		return rerr
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

// DeleteFile removes a file from the default branch.
func (c *Client) DeleteFile(ctx context.Context, path, message, sha string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		SHA:     github.String(sha),
	}
	err := c.retry(func() error {
		_, _, rerr := c.rest.Repositories.DeleteFile(ctx, c.owner, c.repo, path, opts)
		return rerr
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}
