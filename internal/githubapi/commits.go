package githubapi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v66/github"
)

// ListBranchCommits returns the branch's commits authored inside the
// [since, until) window, oldest first.
func (c *Client) ListBranchCommits(ctx context.Context, branch string, since, until time.Time) ([]*RepoCommit, error) {
	opts := &github.CommitsListOptions{
		SHA:         branch,
		Since:       since,
		Until:       until,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var all []*RepoCommit
	for {
		var (
			commits []*github.RepositoryCommit
			resp    *github.Response
		)
		err := c.retry(func() error {
			var rerr error
			commits, resp, rerr = c.rest.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
			return rerr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list commits on %s: %w", branch, err)
		}

		for _, rc := range commits {
			all = append(all, convertCommit(rc))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	// The API returns newest first; callers read chronologically.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// GetCommit fetches a single commit by SHA.
func (c *Client) GetCommit(ctx context.Context, sha string) (*RepoCommit, error) {
	var rc *github.RepositoryCommit
	err := c.retry(func() error {
		var rerr error
		rc, _, rerr = c.rest.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", sha, err)
	}
	return convertCommit(rc), nil
}

// MergeChildren expands a two-parent merge commit into the commits it
// brought in, by comparing its first parent against the merge head.
// Non-merge commits yield nothing.
func (c *Client) MergeChildren(ctx context.Context, merge *RepoCommit) ([]*RepoCommit, error) {
	if len(merge.Parents) != 2 {
		return nil, nil
	}

	var cmp *github.CommitsComparison
	err := c.retry(func() error {
		var rerr error
		cmp, _, rerr = c.rest.Repositories.CompareCommits(ctx, c.owner, c.repo, merge.Parents[0], merge.SHA, &github.ListOptions{PerPage: 100})
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compare merge %s: %w", merge.SHA, err)
	}

	var children []*RepoCommit
	for _, rc := range cmp.Commits {
		child := convertCommit(rc)
		if child.SHA == merge.SHA {
			continue
		}
		children = append(children, child)
	}
	return children, nil
}
