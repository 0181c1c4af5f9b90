package report

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/devlogkit/devlog/internal/githubapi"
)

func TestGenerate_CreatesNewReport(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")

	var gotBranch string
	var gotSince, gotUntil time.Time
	mock.ListBranchCommitsFunc = func(ctx context.Context, branch string, since, until time.Time) ([]*githubapi.RepoCommit, error) {
		gotBranch, gotSince, gotUntil = branch, since, until
		return []*githubapi.RepoCommit{
			{
				SHA:        "abcdef1234567",
				Message:    "[feat] add webhook retry\n\n[Body]\n- retry on 5xx\n\n[Todo]\n- write docs\n@API\n- (issue) add pagination\n\n[Footer]\nRelated to #12",
				AuthorName: "Octo Cat",
				URL:        "https://github.com/octo/devlog/commit/abcdef1234567",
				AuthoredAt: time.Date(2026, 8, 25, 9, 15, 0, 0, time.UTC),
			},
			{
				SHA:        "merge0012345",
				Message:    "Merge pull request #9 from octo/feature",
				AuthoredAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
				Parents:    []string{"p1", "p2"},
			},
			{
				SHA:        "ccc1234567890",
				Message:    "chore: bump deps",
				AuthoredAt: time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC),
			},
		}, nil
	}
	mock.MergeChildrenFunc = func(ctx context.Context, merge *githubapi.RepoCommit) ([]*githubapi.RepoCommit, error) {
		return []*githubapi.RepoCommit{
			{
				SHA:        "ddd1234567890",
				Message:    "[fix] handle nil event",
				AuthorName: "Octo Cat",
				AuthoredAt: time.Date(2026, 8, 25, 8, 45, 0, 0, time.UTC),
			},
		}, nil
	}

	svc := NewService(mock, Options{
		Sections: []SectionFunc{
			func(ctx context.Context) (string, error) {
				return "<div align=\"center\">\n\n## 🧩 Problem Solving\n\n</div>\n\n**Gold V**", nil
			},
		},
	})

	res, err := svc.Generate(context.Background(), "main", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if gotBranch != "main" {
		t.Errorf("Expected branch main, got %q", gotBranch)
	}
	if want := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC); !gotSince.Equal(want) {
		t.Errorf("Expected window start %v, got %v", want, gotSince)
	}
	if want := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC); !gotUntil.Equal(want) {
		t.Errorf("Expected window end %v, got %v", want, gotUntil)
	}

	if !res.Created || res.Issue == nil {
		t.Fatalf("Expected a created issue, got %+v", res)
	}
	if res.NewCommits != 2 {
		t.Errorf("Expected 2 new commits, got %d", res.NewCommits)
	}

	if len(mock.CreateIssueCalls) != 1 {
		t.Fatalf("Expected 1 CreateIssue call, got %d", len(mock.CreateIssueCalls))
	}
	req := mock.CreateIssueCalls[0]
	if req.Title != "📊 Development Status Report (2026-08-25) - devlog" {
		t.Errorf("Unexpected title %q", req.Title)
	}
	if !reflect.DeepEqual(req.Labels, []string{"DSR", "branch:main"}) {
		t.Errorf("Expected labels [DSR branch:main], got %v", req.Labels)
	}

	for _, want := range []string{
		"💫 09:15:00 - add webhook retry",
		"💫 08:45:00 - handle nil event",
		"> • retry on 5xx",
		"> Related to #12",
		"- [ ] write docs",
		"- [ ] (issue) add pagination",
		"📑 API (0/1)",
		"## 🧩 Problem Solving",
	} {
		if !strings.Contains(req.Body, want) {
			t.Errorf("Expected body to contain %q, body:\n%s", want, req.Body)
		}
	}
	for _, absent := range []string{"bump deps", "Merge pull request"} {
		if strings.Contains(req.Body, absent) {
			t.Errorf("Expected body not to contain %q", absent)
		}
	}

	if len(mock.CreateCommentCalls) != 1 {
		t.Fatalf("Expected 1 reference comment, got %d", len(mock.CreateCommentCalls))
	}
	if c := mock.CreateCommentCalls[0]; c.Number != 12 || !strings.Contains(c.Body, "Referenced in commit abcdef1") {
		t.Errorf("Unexpected reference comment %+v", c)
	}

	expectedTodos := []Todo{
		{Category: "General", Text: "write docs"},
		{Category: "API", Text: "(issue) add pagination"},
	}
	if !reflect.DeepEqual(res.Todos, expectedTodos) {
		t.Errorf("Expected todos %+v, got %+v", expectedTodos, res.Todos)
	}

	src := res.TodoSources["add pagination"]
	if src == nil || src.Title != "add webhook retry" || src.SHA != "abcdef1234567" || src.Branch != "main" {
		t.Errorf("Expected a promotion source for the marked todo, got %+v", src)
	}
	if _, ok := res.TodoSources["write docs"]; ok {
		t.Error("Expected unmarked todos to carry no promotion source")
	}
}

func TestGenerate_UpdatesExistingAndMigrates(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")

	titleToday := Title("📊", "2026-08-25", "devlog")
	existingBody := Render(&Body{
		Title: titleToday,
		Branches: []BranchSection{
			{Branch: "main", Blocks: []string{CommitBlock{
				Time:     "08:00:00",
				Title:    "already logged thing",
				Type:     "feat",
				TypeDesc: "New Feature",
				SHA:      "aaaaaa1",
				Author:   "Dev",
			}.Render()}},
		},
		Todos: []Todo{{Category: "General", Text: "existing task", Checked: true}},
	})
	today := &githubapi.Issue{
		Number: 50,
		Title:  titleToday,
		Body:   existingBody,
		State:  "open",
		Labels: []string{"DSR"},
	}

	prevTitle := Title("📊", "2026-08-24", "devlog")
	prevBody := Render(&Body{
		Title: prevTitle,
		Todos: []Todo{
			{Category: "Ops", Text: "carry me"},
			{Category: "Ops", Text: "done already", Checked: true},
		},
	})
	prev := &githubapi.Issue{
		Number: 40,
		Title:  prevTitle,
		Body:   prevBody,
		State:  "open",
		Labels: []string{"DSR", "branch:main"},
	}

	mock.ListIssuesFunc = func(ctx context.Context, opts githubapi.IssueListOptions) ([]*githubapi.Issue, error) {
		return []*githubapi.Issue{today, prev}, nil
	}
	mock.ListBranchCommitsFunc = func(ctx context.Context, branch string, since, until time.Time) ([]*githubapi.RepoCommit, error) {
		return []*githubapi.RepoCommit{
			{
				SHA:        "eeeee01234567",
				Message:    "[fix] resolve timeout",
				AuthorName: "Dev",
				AuthoredAt: time.Date(2026, 8, 25, 13, 30, 5, 0, time.UTC),
			},
			{
				SHA:        "ddddd01234567",
				Message:    "[feat] already logged thing",
				AuthorName: "Dev",
				AuthoredAt: time.Date(2026, 8, 25, 13, 45, 0, 0, time.UTC),
			},
		}, nil
	}

	svc := NewService(mock, Options{UpdateReadme: true})

	res, err := svc.Generate(context.Background(), "main", time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if res.Created {
		t.Error("Expected an update, not a create")
	}
	if res.NewCommits != 1 {
		t.Errorf("Expected 1 new commit, got %d", res.NewCommits)
	}
	if !reflect.DeepEqual(res.ClosedPrev, []int{40}) {
		t.Errorf("Expected previous report #40 closed, got %v", res.ClosedPrev)
	}
	if !reflect.DeepEqual(mock.CloseIssueCalls, []int{40}) {
		t.Errorf("Expected CloseIssue for #40, got %v", mock.CloseIssueCalls)
	}

	if len(mock.EditIssueCalls) != 1 {
		t.Fatalf("Expected 1 EditIssue call, got %d", len(mock.EditIssueCalls))
	}
	edit := mock.EditIssueCalls[0]
	if edit.Number != 50 || edit.Edit.Body == nil {
		t.Fatalf("Unexpected edit %+v", edit)
	}
	newBody := *edit.Edit.Body

	if !strings.Contains(newBody, "💫 13:30:05 - resolve timeout") {
		t.Errorf("Expected the new block in body:\n%s", newBody)
	}
	if got := strings.Count(newBody, "already logged thing"); got != 1 {
		t.Errorf("Expected the logged commit to stay deduplicated, found %d occurrences", got)
	}
	if !strings.Contains(newBody, "- [ ] carry me") {
		t.Errorf("Expected the migrated todo in body:\n%s", newBody)
	}
	if strings.Contains(newBody, "done already") {
		t.Error("Expected checked previous todos to be dropped")
	}
	if !strings.Contains(newBody, "📑 General (1/1)") {
		t.Errorf("Expected the existing checked todo to keep its state:\n%s", newBody)
	}
	if !strings.Contains(newBody, "📑 Ops (0/1)") {
		t.Errorf("Expected the migrated Ops category:\n%s", newBody)
	}

	if res.Todos[0].Text != "carry me" {
		t.Errorf("Expected migrated todos to lead, got %+v", res.Todos)
	}

	foundLabel := false
	for _, call := range mock.AddLabelsCalls {
		if call.Number == 50 && reflect.DeepEqual(call.Labels, []string{"branch:main"}) {
			foundLabel = true
		}
	}
	if !foundLabel {
		t.Errorf("Expected branch:main label added to #50, got %v", mock.AddLabelsCalls)
	}

	if len(mock.UpdateFileCalls) != 1 {
		t.Fatalf("Expected 1 README update, got %d", len(mock.UpdateFileCalls))
	}
	readme := mock.UpdateFileCalls[0]
	if readme.Message != "docs: Update DSR link to #50" {
		t.Errorf("Unexpected README commit message %q", readme.Message)
	}
	if !strings.Contains(readme.Content, "[📊 Development Status Report (2026-08-25) - devlog](../../issues/50)") {
		t.Errorf("Expected README link, got:\n%s", readme.Content)
	}
}

func TestGenerate_NothingToDo(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")

	res, err := svcGenerate(t, mock, Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if res.Issue != nil || res.NewCommits != 0 {
		t.Errorf("Expected an empty result, got %+v", res)
	}
	if len(mock.CreateIssueCalls) != 0 || len(mock.CloseIssueCalls) != 0 {
		t.Error("Expected no mutations on an empty day")
	}
}

func TestGenerate_DryRun(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")

	prevTitle := Title("📊", "2026-08-24", "devlog")
	prev := &githubapi.Issue{
		Number: 40,
		Title:  prevTitle,
		Body: Render(&Body{
			Title: prevTitle,
			Todos: []Todo{{Category: "General", Text: "carry me"}},
		}),
		State:  "open",
		Labels: []string{"DSR"},
	}
	mock.ListIssuesFunc = func(ctx context.Context, opts githubapi.IssueListOptions) ([]*githubapi.Issue, error) {
		return []*githubapi.Issue{prev}, nil
	}
	mock.ListBranchCommitsFunc = func(ctx context.Context, branch string, since, until time.Time) ([]*githubapi.RepoCommit, error) {
		return []*githubapi.RepoCommit{
			{
				SHA:        "abcdef1234567",
				Message:    "[feat] add webhook retry",
				AuthorName: "Dev",
				AuthoredAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
			},
		}, nil
	}

	res, err := svcGenerate(t, mock, Options{DryRun: true, UpdateReadme: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !res.DryRun || !res.Created || res.NewCommits != 1 {
		t.Errorf("Unexpected result %+v", res)
	}
	if len(res.ClosedPrev) != 0 {
		t.Errorf("Expected no closures in dry run, got %v", res.ClosedPrev)
	}

	found := false
	for _, todo := range res.Todos {
		if todo.Text == "carry me" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the previous todo to be carried, got %+v", res.Todos)
	}

	if len(mock.CreateIssueCalls)+len(mock.CloseIssueCalls)+len(mock.CreateCommentCalls)+len(mock.UpdateFileCalls) != 0 {
		t.Error("Expected no mutations in dry run")
	}
}

func svcGenerate(t *testing.T, mock *githubapi.MockAPI, opts Options) (*Result, error) {
	t.Helper()
	svc := NewService(mock, opts)
	return svc.Generate(context.Background(), "main", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
}

func TestGenerate_DayWindowInTimezone(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")

	var gotSince time.Time
	mock.ListBranchCommitsFunc = func(ctx context.Context, branch string, since, until time.Time) ([]*githubapi.RepoCommit, error) {
		gotSince = since
		return []*githubapi.RepoCommit{
			{
				SHA:        "abcdef1234567",
				Message:    "[feat] late night work",
				AuthorName: "Dev",
				AuthoredAt: time.Date(2026, 8, 24, 16, 30, 0, 0, time.UTC),
			},
		}, nil
	}

	seoul := time.FixedZone("KST", 9*60*60)
	svc := NewService(mock, Options{Location: seoul})

	// 01:00 KST on the 25th is still the 24th in UTC.
	res, err := svc.Generate(context.Background(), "main", time.Date(2026, 8, 25, 1, 0, 0, 0, seoul))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if want := time.Date(2026, 8, 25, 0, 0, 0, 0, seoul); !gotSince.Equal(want) {
		t.Errorf("Expected window start %v, got %v", want, gotSince)
	}

	if len(mock.CreateIssueCalls) != 1 {
		t.Fatalf("Expected 1 CreateIssue call, got %d", len(mock.CreateIssueCalls))
	}
	req := mock.CreateIssueCalls[0]
	if !strings.Contains(req.Title, "(2026-08-25)") {
		t.Errorf("Expected the local date in title %q", req.Title)
	}
	// 16:30 UTC renders as 01:30 local time.
	if !strings.Contains(req.Body, "💫 01:30:00 - late night work") {
		t.Errorf("Expected the local block time, body:\n%s", req.Body)
	}
	if res.Issue == nil {
		t.Error("Expected a created issue")
	}
}

func TestCloseStale(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")
	mock.ListIssuesFunc = func(ctx context.Context, opts githubapi.IssueListOptions) ([]*githubapi.Issue, error) {
		return []*githubapi.Issue{
			{Number: 30, Title: "📊 Development Status Report (2026-08-15) - devlog", State: "open"},
			{Number: 31, Title: "📊 Development Status Report (2026-08-18) - devlog", State: "open"},
			{Number: 32, Title: "📊 Development Status Report (2026-08-24) - devlog", State: "open"},
			{Number: 33, Title: "📅 Daily Development Log (2026-08-01)", State: "open"},
			{Number: 34, Title: "some pinned note", State: "open"},
		}, nil
	}

	svc := NewService(mock, Options{})
	closed, err := svc.CloseStale(context.Background(), time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CloseStale failed: %v", err)
	}

	// Exactly keepDays old stays; strictly older goes.
	expected := []int{30, 33}
	if !reflect.DeepEqual(closed, expected) {
		t.Errorf("Expected %v closed, got %v", expected, closed)
	}
	if !reflect.DeepEqual(mock.CloseIssueCalls, expected) {
		t.Errorf("Expected CloseIssue calls %v, got %v", expected, mock.CloseIssueCalls)
	}
}

func TestUpdateReadme_InsertsAfterFirstHeading(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")

	svc := NewService(mock, Options{})
	title := "📊 Development Status Report (2026-08-25) - devlog"
	if err := svc.UpdateReadme(context.Background(), 77, title); err != nil {
		t.Fatalf("UpdateReadme failed: %v", err)
	}

	if len(mock.UpdateFileCalls) != 1 {
		t.Fatalf("Expected 1 UpdateFile call, got %d", len(mock.UpdateFileCalls))
	}
	call := mock.UpdateFileCalls[0]
	if call.Path != "README.md" || call.SHA != "mocksha" {
		t.Errorf("Unexpected file target %+v", call)
	}
	if call.Message != "docs: Update DSR link to #77" {
		t.Errorf("Unexpected commit message %q", call.Message)
	}

	expected := "# Mock\n\n## 📌 Latest Development Status Report\n[" + title + "](../../issues/77)\n"
	if call.Content != expected {
		t.Errorf("Expected content:\n%q\ngot:\n%q", expected, call.Content)
	}
}

func TestUpdateReadme_ReplacesExistingSection(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")
	mock.GetReadmeFunc = func(ctx context.Context) (*githubapi.RepoFile, error) {
		return &githubapi.RepoFile{
			Path:    "README.md",
			SHA:     "sha1",
			Content: "# devlog\n\n## 📌 Latest Development Status Report\n[old title](../../issues/70)\n\n## Usage\n\nRun it.\n",
		}, nil
	}

	svc := NewService(mock, Options{})
	if err := svc.UpdateReadme(context.Background(), 71, "new title"); err != nil {
		t.Fatalf("UpdateReadme failed: %v", err)
	}

	if len(mock.UpdateFileCalls) != 1 {
		t.Fatalf("Expected 1 UpdateFile call, got %d", len(mock.UpdateFileCalls))
	}
	content := mock.UpdateFileCalls[0].Content
	if strings.Contains(content, "issues/70") {
		t.Error("Expected the old link to be replaced")
	}
	if !strings.Contains(content, "[new title](../../issues/71)") {
		t.Errorf("Expected the new link, got:\n%s", content)
	}
	if !strings.Contains(content, "## Usage\n\nRun it.") {
		t.Errorf("Expected surrounding content to survive, got:\n%s", content)
	}
	if strings.Count(content, "## 📌 Latest Development Status Report") != 1 {
		t.Errorf("Expected exactly one report section, got:\n%s", content)
	}
}

func TestUpdateReadme_NoReadme(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")
	mock.GetReadmeFunc = func(ctx context.Context) (*githubapi.RepoFile, error) {
		return nil, nil
	}

	svc := NewService(mock, Options{})
	if err := svc.UpdateReadme(context.Background(), 77, "title"); err != nil {
		t.Fatalf("Expected a missing README to be a no-op, got %v", err)
	}
	if len(mock.UpdateFileCalls) != 0 {
		t.Error("Expected no file update without a README")
	}
}

func TestUpdateReadme_NoChangeSkipsCommit(t *testing.T) {
	mock := githubapi.NewMockAPI("octo", "devlog")
	mock.GetReadmeFunc = func(ctx context.Context) (*githubapi.RepoFile, error) {
		return &githubapi.RepoFile{
			Path:    "README.md",
			SHA:     "sha1",
			Content: "# devlog\n\n## 📌 Latest Development Status Report\n[same](../../issues/77)\n",
		}, nil
	}

	svc := NewService(mock, Options{})
	if err := svc.UpdateReadme(context.Background(), 77, "same"); err != nil {
		t.Fatalf("UpdateReadme failed: %v", err)
	}
	if len(mock.UpdateFileCalls) != 0 {
		t.Error("Expected no commit when the link is current")
	}
}
