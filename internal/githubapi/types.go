package githubapi

import (
	"time"

	"github.com/google/go-github/v66/github"
)

// Issue is the subset of issue data the automation works with.
type Issue struct {
	Number    int
	NodeID    string
	Title     string
	Body      string
	State     string
	URL       string
	Labels    []string
	Assignees []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasLabel reports whether the issue carries the named label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// NewIssue describes an issue to create.
type NewIssue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// IssueEdit describes a partial issue update; nil fields are left
// untouched.
type IssueEdit struct {
	Title *string
	Body  *string
	State *string
}

// RepoCommit is a commit fetched from the repository history.
type RepoCommit struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorLogin string
	URL         string
	AuthoredAt  time.Time
	Parents     []string
}

func convertIssue(issue *github.Issue) *Issue {
	if issue == nil {
		return nil
	}

	out := &Issue{
		Number:    issue.GetNumber(),
		NodeID:    issue.GetNodeID(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		URL:       issue.GetHTMLURL(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}

	for _, label := range issue.Labels {
		out.Labels = append(out.Labels, label.GetName())
	}
	for _, assignee := range issue.Assignees {
		out.Assignees = append(out.Assignees, assignee.GetLogin())
	}

	return out
}

func convertCommit(rc *github.RepositoryCommit) *RepoCommit {
	if rc == nil {
		return nil
	}

	out := &RepoCommit{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
		URL:     rc.GetHTMLURL(),
	}

	if commit := rc.GetCommit(); commit != nil {
		if author := commit.GetAuthor(); author != nil {
			out.AuthorName = author.GetName()
			out.AuthoredAt = author.GetDate().Time
		}
	}
	if author := rc.GetAuthor(); author != nil {
		out.AuthorLogin = author.GetLogin()
	}
	for _, parent := range rc.Parents {
		out.Parents = append(out.Parents, parent.GetSHA())
	}

	return out
}
