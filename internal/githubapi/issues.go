package githubapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
)

// IssueListOptions filters ListIssues.
type IssueListOptions struct {
	// State is "open", "closed" or "all". Empty means open.
	State string
	// Labels restricts to issues carrying all of these labels.
	Labels []string
}

// ListIssues returns the repository's issues matching opts, newest
// first, following pagination. Pull requests are filtered out.
func (c *Client) ListIssues(ctx context.Context, opts IssueListOptions) ([]*Issue, error) {
	listOpts := &github.IssueListByRepoOptions{
		State:       opts.State,
		Labels:      opts.Labels,
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	if listOpts.State == "" {
		listOpts.State = "open"
	}

	var all []*Issue
	for {
		var (
			issues []*github.Issue
			resp   *github.Response
		)
		err := c.retry(func() error {
			var rerr error
			issues, resp, rerr = c.rest.Issues.ListByRepo(ctx, c.owner, c.repo, listOpts)
			return rerr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, convertIssue(issue))
		}

		if resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	return all, nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	var issue *github.Issue
	err := c.retry(func() error {
		var rerr error
		issue, _, rerr = c.rest.Issues.Get(ctx, c.owner, c.repo, number)
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", number, err)
	}
	return convertIssue(issue), nil
}

// CreateIssue creates an issue, ensuring its labels exist first.
func (c *Client) CreateIssue(ctx context.Context, req NewIssue) (*Issue, error) {
	for _, label := range req.Labels {
		if err := c.EnsureLabel(ctx, label); err != nil {
			return nil, err
		}
	}

	issueReq := &github.IssueRequest{
		Title: github.String(req.Title),
		Body:  github.String(req.Body),
	}
	if len(req.Labels) > 0 {
		issueReq.Labels = &req.Labels
	}
	if len(req.Assignees) > 0 {
		issueReq.Assignees = &req.Assignees
	}

	var issue *github.Issue
	err := c.retry(func() error {
		var rerr error
		issue, _, rerr = c.rest.Issues.Create(ctx, c.owner, c.repo, issueReq)
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issue %q: %w", req.Title, err)
	}
	return convertIssue(issue), nil
}

// EditIssue applies a partial update to an issue.
func (c *Client) EditIssue(ctx context.Context, number int, edit IssueEdit) (*Issue, error) {
	issueReq := &github.IssueRequest{
		Title: edit.Title,
		Body:  edit.Body,
		State: edit.State,
	}

	var issue *github.Issue
	err := c.retry(func() error {
		var rerr error
		issue, _, rerr = c.rest.Issues.Edit(ctx, c.owner, c.repo, number, issueReq)
		return rerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit issue #%d: %w", number, err)
	}
	return convertIssue(issue), nil
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, number int) error {
	state := "closed"
	_, err := c.EditIssue(ctx, number, IssueEdit{State: &state})
	return err
}

// CreateComment posts a comment on an issue and returns its ID.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (int64, error) {
	var comment *github.IssueComment
	err := c.retry(func() error {
		var rerr error
		comment, _, rerr = c.rest.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
			Body: github.String(body),
		})
		return rerr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return comment.GetID(), nil
}

// AddLabels attaches labels to an issue, creating missing ones with
// the palette color.
func (c *Client) AddLabels(ctx context.Context, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	for _, label := range labels {
		if err := c.EnsureLabel(ctx, label); err != nil {
			return err
		}
	}

	return c.retry(func() error {
		_, _, err := c.rest.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, labels)
		return err
	})
}

// RemoveLabel detaches a label from an issue. A label that was not
// present is not an error.
func (c *Client) RemoveLabel(ctx context.Context, number int, label string) error {
	err := c.retry(func() error {
		resp, rerr := c.rest.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, number, label)
		if rerr != nil && resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return rerr
	})
	if err != nil {
		return fmt.Errorf("failed to remove label %q from issue #%d: %w", label, number, err)
	}
	return nil
}
