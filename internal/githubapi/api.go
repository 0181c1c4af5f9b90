package githubapi

import (
	"context"
	"time"
)

// API is the surface the automation packages program against.
// This abstraction allows mocking the GitHub API in tests.
type API interface {
	// Owner returns the repository owner login.
	Owner() string

	// Repo returns the repository name.
	Repo() string

	// FullName returns "owner/name".
	FullName() string

	// ListIssues lists issues matching opts, newest first. Pull
	// requests are filtered out.
	ListIssues(ctx context.Context, opts IssueListOptions) ([]*Issue, error)

	// GetIssue fetches a single issue by number.
	GetIssue(ctx context.Context, number int) (*Issue, error)

	// CreateIssue opens a new issue, creating its labels first.
	CreateIssue(ctx context.Context, req NewIssue) (*Issue, error)

	// EditIssue applies a partial edit to an issue.
	EditIssue(ctx context.Context, number int, edit IssueEdit) (*Issue, error)

	// CloseIssue closes an issue.
	CloseIssue(ctx context.Context, number int) error

	// CreateComment adds a comment and returns its ID.
	CreateComment(ctx context.Context, number int, body string) (int64, error)

	// AddLabels attaches labels to an issue, creating them first.
	AddLabels(ctx context.Context, number int, labels []string) error

	// RemoveLabel detaches a label. Missing labels are not an error.
	RemoveLabel(ctx context.Context, number int, label string) error

	// EnsureLabel creates a label with its palette color if absent.
	EnsureLabel(ctx context.Context, name string) error

	// ListLabels lists all label names in the repository.
	ListLabels(ctx context.Context) ([]string, error)

	// ListBranchCommits lists commits on branch in [since, until),
	// oldest first.
	ListBranchCommits(ctx context.Context, branch string, since, until time.Time) ([]*RepoCommit, error)

	// GetCommit fetches a single commit by SHA.
	GetCommit(ctx context.Context, sha string) (*RepoCommit, error)

	// MergeChildren lists the commits a merge commit brought in.
	MergeChildren(ctx context.Context, merge *RepoCommit) ([]*RepoCommit, error)

	// GetReadme fetches the repository README, or nil when the
	// repository has none.
	GetReadme(ctx context.Context) (*RepoFile, error)

	// GetFile fetches a file, or nil when the path does not exist.
	GetFile(ctx context.Context, path string) (*RepoFile, error)

	// UpdateFile commits new content over an existing file.
	UpdateFile(ctx context.Context, path, message, content, sha string) error

	// DeleteFile removes a file.
	DeleteFile(ctx context.Context, path, message, sha string) error

	// GraphQL runs a GraphQL query or mutation and decodes the data
	// envelope into out.
	GraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error

	// RateLimit returns the remaining and total core API quota.
	RateLimit(ctx context.Context) (remaining, limit int, err error)
}

var _ API = (*Client)(nil)

// MockAPI is a mock implementation for testing.
type MockAPI struct {
	OwnerValue string
	RepoValue  string

	ListIssuesFunc        func(ctx context.Context, opts IssueListOptions) ([]*Issue, error)
	GetIssueFunc          func(ctx context.Context, number int) (*Issue, error)
	CreateIssueFunc       func(ctx context.Context, req NewIssue) (*Issue, error)
	EditIssueFunc         func(ctx context.Context, number int, edit IssueEdit) (*Issue, error)
	CloseIssueFunc        func(ctx context.Context, number int) error
	CreateCommentFunc     func(ctx context.Context, number int, body string) (int64, error)
	AddLabelsFunc         func(ctx context.Context, number int, labels []string) error
	RemoveLabelFunc       func(ctx context.Context, number int, label string) error
	EnsureLabelFunc       func(ctx context.Context, name string) error
	ListLabelsFunc        func(ctx context.Context) ([]string, error)
	ListBranchCommitsFunc func(ctx context.Context, branch string, since, until time.Time) ([]*RepoCommit, error)
	GetCommitFunc         func(ctx context.Context, sha string) (*RepoCommit, error)
	MergeChildrenFunc     func(ctx context.Context, merge *RepoCommit) ([]*RepoCommit, error)
	GetReadmeFunc         func(ctx context.Context) (*RepoFile, error)
	GetFileFunc           func(ctx context.Context, path string) (*RepoFile, error)
	UpdateFileFunc        func(ctx context.Context, path, message, content, sha string) error
	DeleteFileFunc        func(ctx context.Context, path, message, sha string) error
	GraphQLFunc           func(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error
	RateLimitFunc         func(ctx context.Context) (remaining, limit int, err error)

	// Track calls
	CreateIssueCalls []NewIssue
	EditIssueCalls   []struct {
		Number int
		Edit   IssueEdit
	}
	CloseIssueCalls    []int
	CreateCommentCalls []struct {
		Number int
		Body   string
	}
	AddLabelsCalls []struct {
		Number int
		Labels []string
	}
	RemoveLabelCalls []struct {
		Number int
		Label  string
	}
	EnsureLabelCalls []string
	UpdateFileCalls  []struct {
		Path    string
		Message string
		Content string
		SHA     string
	}
	DeleteFileCalls []struct {
		Path    string
		Message string
		SHA     string
	}
	GraphQLCalls []struct {
		Query     string
		Variables map[string]interface{}
	}
}

// NewMockAPI creates a mock for owner/repo.
func NewMockAPI(owner, repo string) *MockAPI {
	return &MockAPI{OwnerValue: owner, RepoValue: repo}
}

// Owner mock implementation
func (m *MockAPI) Owner() string { return m.OwnerValue }

// Repo mock implementation
func (m *MockAPI) Repo() string { return m.RepoValue }

// FullName mock implementation
func (m *MockAPI) FullName() string { return m.OwnerValue + "/" + m.RepoValue }

// ListIssues mock implementation
func (m *MockAPI) ListIssues(ctx context.Context, opts IssueListOptions) ([]*Issue, error) {
	if m.ListIssuesFunc != nil {
		return m.ListIssuesFunc(ctx, opts)
	}
	return nil, nil
}

// GetIssue mock implementation
func (m *MockAPI) GetIssue(ctx context.Context, number int) (*Issue, error) {
	if m.GetIssueFunc != nil {
		return m.GetIssueFunc(ctx, number)
	}
	return &Issue{Number: number, State: "open"}, nil
}

// CreateIssue mock implementation
func (m *MockAPI) CreateIssue(ctx context.Context, req NewIssue) (*Issue, error) {
	m.CreateIssueCalls = append(m.CreateIssueCalls, req)

	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(ctx, req)
	}

	return &Issue{
		Number: 100 + len(m.CreateIssueCalls),
		Title:  req.Title,
		Body:   req.Body,
		State:  "open",
		Labels: req.Labels,
	}, nil
}

// EditIssue mock implementation
func (m *MockAPI) EditIssue(ctx context.Context, number int, edit IssueEdit) (*Issue, error) {
	m.EditIssueCalls = append(m.EditIssueCalls, struct {
		Number int
		Edit   IssueEdit
	}{number, edit})

	if m.EditIssueFunc != nil {
		return m.EditIssueFunc(ctx, number, edit)
	}

	return &Issue{Number: number, State: "open"}, nil
}

// CloseIssue mock implementation
func (m *MockAPI) CloseIssue(ctx context.Context, number int) error {
	m.CloseIssueCalls = append(m.CloseIssueCalls, number)

	if m.CloseIssueFunc != nil {
		return m.CloseIssueFunc(ctx, number)
	}

	return nil
}

// CreateComment mock implementation
func (m *MockAPI) CreateComment(ctx context.Context, number int, body string) (int64, error) {
	m.CreateCommentCalls = append(m.CreateCommentCalls, struct {
		Number int
		Body   string
	}{number, body})

	if m.CreateCommentFunc != nil {
		return m.CreateCommentFunc(ctx, number, body)
	}

	return 12345, nil // Default mock comment ID
}

// AddLabels mock implementation
func (m *MockAPI) AddLabels(ctx context.Context, number int, labels []string) error {
	m.AddLabelsCalls = append(m.AddLabelsCalls, struct {
		Number int
		Labels []string
	}{number, labels})

	if m.AddLabelsFunc != nil {
		return m.AddLabelsFunc(ctx, number, labels)
	}

	return nil
}

// RemoveLabel mock implementation
func (m *MockAPI) RemoveLabel(ctx context.Context, number int, label string) error {
	m.RemoveLabelCalls = append(m.RemoveLabelCalls, struct {
		Number int
		Label  string
	}{number, label})

	if m.RemoveLabelFunc != nil {
		return m.RemoveLabelFunc(ctx, number, label)
	}

	return nil
}

// EnsureLabel mock implementation
func (m *MockAPI) EnsureLabel(ctx context.Context, name string) error {
	m.EnsureLabelCalls = append(m.EnsureLabelCalls, name)

	if m.EnsureLabelFunc != nil {
		return m.EnsureLabelFunc(ctx, name)
	}

	return nil
}

// ListLabels mock implementation
func (m *MockAPI) ListLabels(ctx context.Context) ([]string, error) {
	if m.ListLabelsFunc != nil {
		return m.ListLabelsFunc(ctx)
	}
	return nil, nil
}

// ListBranchCommits mock implementation
func (m *MockAPI) ListBranchCommits(ctx context.Context, branch string, since, until time.Time) ([]*RepoCommit, error) {
	if m.ListBranchCommitsFunc != nil {
		return m.ListBranchCommitsFunc(ctx, branch, since, until)
	}
	return nil, nil
}

// GetCommit mock implementation
func (m *MockAPI) GetCommit(ctx context.Context, sha string) (*RepoCommit, error) {
	if m.GetCommitFunc != nil {
		return m.GetCommitFunc(ctx, sha)
	}
	return &RepoCommit{SHA: sha}, nil
}

// MergeChildren mock implementation
func (m *MockAPI) MergeChildren(ctx context.Context, merge *RepoCommit) ([]*RepoCommit, error) {
	if m.MergeChildrenFunc != nil {
		return m.MergeChildrenFunc(ctx, merge)
	}
	return nil, nil
}

// GetReadme mock implementation
func (m *MockAPI) GetReadme(ctx context.Context) (*RepoFile, error) {
	if m.GetReadmeFunc != nil {
		return m.GetReadmeFunc(ctx)
	}
	return &RepoFile{Path: "README.md", SHA: "mocksha", Content: "# Mock\n"}, nil
}

// GetFile mock implementation
func (m *MockAPI) GetFile(ctx context.Context, path string) (*RepoFile, error) {
	if m.GetFileFunc != nil {
		return m.GetFileFunc(ctx, path)
	}
	return nil, nil
}

// UpdateFile mock implementation
func (m *MockAPI) UpdateFile(ctx context.Context, path, message, content, sha string) error {
	m.UpdateFileCalls = append(m.UpdateFileCalls, struct {
		Path    string
		Message string
		Content string
		SHA     string
	}{path, message, content, sha})

	if m.UpdateFileFunc != nil {
		return m.UpdateFileFunc(ctx, path, message, content, sha)
	}

	return nil
}

// DeleteFile mock implementation
func (m *MockAPI) DeleteFile(ctx context.Context, path, message, sha string) error {
	m.DeleteFileCalls = append(m.DeleteFileCalls, struct {
		Path    string
		Message string
		SHA     string
	}{path, message, sha})

	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, path, message, sha)
	}

	return nil
}

// GraphQL mock implementation
func (m *MockAPI) GraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	m.GraphQLCalls = append(m.GraphQLCalls, struct {
		Query     string
		Variables map[string]interface{}
	}{query, variables})

	if m.GraphQLFunc != nil {
		return m.GraphQLFunc(ctx, query, variables, out)
	}

	return nil
}

// RateLimit mock implementation
func (m *MockAPI) RateLimit(ctx context.Context) (remaining, limit int, err error) {
	if m.RateLimitFunc != nil {
		return m.RateLimitFunc(ctx)
	}
	return 5000, 5000, nil
}

var _ API = (*MockAPI)(nil)
