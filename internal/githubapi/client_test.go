package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient wires a client to a local server. REST and GraphQL
// traffic both hit handler.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient("owner", "repo", &TokenAuth{Token: "test-token"}).
		WithBaseURLs(srv.URL+"/", srv.URL+"/graphql").
		WithRetry(1, time.Millisecond)
}

func TestListIssues_PaginationAndPRFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/issues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("state") != "open" {
			t.Errorf("state = %q, want open", r.URL.Query().Get("state"))
		}

		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", `</repos/owner/repo/issues?page=2>; rel="next"`)
			_, _ = w.Write([]byte(`[
				{"number": 3, "title": "third", "state": "open"},
				{"number": 2, "title": "a pull request", "state": "open", "pull_request": {"url": "https://example.com/pr/2"}}
			]`))
		case "2":
			_, _ = w.Write([]byte(`[{"number": 1, "title": "first", "state": "open", "labels": [{"name": "DSR"}]}]`))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	client := newTestClient(t, mux)

	issues, err := client.ListIssues(context.Background(), IssueListOptions{})
	if err != nil {
		t.Fatalf("ListIssues() error = %v", err)
	}

	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2 (pull request filtered)", len(issues))
	}
	if issues[0].Number != 3 || issues[1].Number != 1 {
		t.Errorf("issue numbers = %d, %d, want 3, 1", issues[0].Number, issues[1].Number)
	}
	if !issues[1].HasLabel("DSR") {
		t.Errorf("issue #1 should carry the DSR label")
	}
}

func TestCreateIssue_EnsuresLabelsFirst(t *testing.T) {
	var sequence []string

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/labels/", func(w http.ResponseWriter, r *http.Request) {
		sequence = append(sequence, "check "+r.URL.Path[len("/repos/owner/repo/labels/"):])
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	mux.HandleFunc("/repos/owner/repo/labels", func(w http.ResponseWriter, r *http.Request) {
		var label struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		}
		_ = json.NewDecoder(r.Body).Decode(&label)
		sequence = append(sequence, "create "+label.Name+" "+label.Color)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"name": label.Name})
	})
	mux.HandleFunc("/repos/owner/repo/issues", func(w http.ResponseWriter, r *http.Request) {
		sequence = append(sequence, "issue")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 42, "title": "new", "state": "open", "html_url": "https://example.com/owner/repo/issues/42"}`))
	})

	client := newTestClient(t, mux)

	issue, err := client.CreateIssue(context.Background(), NewIssue{
		Title:  "new",
		Body:   "body",
		Labels: []string{"todo-item"},
	})
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if issue.Number != 42 {
		t.Errorf("Number = %d, want 42", issue.Number)
	}

	want := []string{"check todo-item", "create todo-item 0E8A16", "issue"}
	if len(sequence) != len(want) {
		t.Fatalf("sequence = %v, want %v", sequence, want)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("sequence[%d] = %q, want %q", i, sequence[i], want[i])
		}
	}
}

func TestEnsureLabel_CachedPerRun(t *testing.T) {
	var checks atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/labels/daily-log", func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "daily-log"})
	})

	client := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		if err := client.EnsureLabel(context.Background(), "daily-log"); err != nil {
			t.Fatalf("EnsureLabel() error = %v", err)
		}
	}
	if got := checks.Load(); got != 1 {
		t.Errorf("label checked %d times, want 1", got)
	}
}

func TestRemoveLabel_MissingIsNotAnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/issues/5/labels/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Label does not exist"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	if err := client.RemoveLabel(context.Background(), 5, "gone"); err != nil {
		t.Errorf("RemoveLabel() error = %v, want nil for missing label", err)
	}
}

func TestListBranchCommits_OldestFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sha") != "main" {
			t.Errorf("sha = %q, want main", r.URL.Query().Get("sha"))
		}
		if r.URL.Query().Get("since") == "" || r.URL.Query().Get("until") == "" {
			t.Errorf("expected since/until query params, got %q", r.URL.RawQuery)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sha": "c3", "commit": {"message": "[feat] Third", "author": {"name": "Dev", "date": "2026-02-03T10:00:00Z"}}},
			{"sha": "c2", "commit": {"message": "[fix] Second", "author": {"name": "Dev", "date": "2026-02-03T09:00:00Z"}}},
			{"sha": "c1", "commit": {"message": "[feat] First", "author": {"name": "Dev", "date": "2026-02-03T08:00:00Z"}}}
		]`))
	})

	client := newTestClient(t, mux)

	since := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	commits, err := client.ListBranchCommits(context.Background(), "main", since, since.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListBranchCommits() error = %v", err)
	}

	if len(commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(commits))
	}
	if commits[0].SHA != "c1" || commits[2].SHA != "c3" {
		t.Errorf("order = %s, %s, %s, want c1, c2, c3", commits[0].SHA, commits[1].SHA, commits[2].SHA)
	}
	if commits[0].AuthorName != "Dev" {
		t.Errorf("AuthorName = %q, want Dev", commits[0].AuthorName)
	}
}

func TestMergeChildren(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/compare/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/p1...m1") {
			t.Errorf("path = %q, want .../compare/p1...m1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"commits": [
			{"sha": "f1", "commit": {"message": "[feat] Feature work"}},
			{"sha": "m1", "commit": {"message": "Merge branch 'feature'"}}
		]}`))
	})

	client := newTestClient(t, mux)

	children, err := client.MergeChildren(context.Background(), &RepoCommit{
		SHA:     "m1",
		Parents: []string{"p1", "p2"},
	})
	if err != nil {
		t.Fatalf("MergeChildren() error = %v", err)
	}
	if len(children) != 1 || children[0].SHA != "f1" {
		t.Errorf("children = %v, want single f1", children)
	}
}

func TestMergeChildren_NonMerge(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	children, err := client.MergeChildren(context.Background(), &RepoCommit{
		SHA:     "c1",
		Parents: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("MergeChildren() error = %v", err)
	}
	if children != nil {
		t.Errorf("children = %v, want nil for non-merge commit", children)
	}
}

func TestGetReadme(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/readme", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":     "README.md",
			"path":     "README.md",
			"sha":      "abc123",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("# Project\n\nHello.\n")),
		})
	})

	client := newTestClient(t, mux)

	readme, err := client.GetReadme(context.Background())
	if err != nil {
		t.Fatalf("GetReadme() error = %v", err)
	}
	if readme.SHA != "abc123" {
		t.Errorf("SHA = %q, want abc123", readme.SHA)
	}
	if !strings.Contains(readme.Content, "# Project") {
		t.Errorf("Content = %q, want decoded markdown", readme.Content)
	}
}

func TestGetFile_Missing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/contents/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	file, err := client.GetFile(context.Background(), "TaskProposals/missing.csv")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if file != nil {
		t.Errorf("file = %+v, want nil for missing path", file)
	}
}

func TestGraphQL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}

		var req struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.Query, "projectV2") {
			t.Errorf("query = %q, want projectV2 query", req.Query)
		}
		if req.Variables["number"] != float64(7) {
			t.Errorf("variables = %v, want number 7", req.Variables)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"user": {"projectV2": {"id": "PVT_123", "title": "board"}}}}`))
	})

	client := newTestClient(t, mux)

	var out struct {
		User struct {
			ProjectV2 struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"projectV2"`
		} `json:"user"`
	}
	err := client.GraphQL(context.Background(), `query($number: Int!) { user { projectV2(number: $number) { id title } } }`,
		map[string]interface{}{"number": 7}, &out)
	if err != nil {
		t.Fatalf("GraphQL() error = %v", err)
	}
	if out.User.ProjectV2.ID != "PVT_123" {
		t.Errorf("ID = %q, want PVT_123", out.User.ProjectV2.ID)
	}
}

func TestGraphQL_ErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": null, "errors": [{"message": "Could not resolve to a ProjectV2"}]}`))
	})

	client := newTestClient(t, mux)

	err := client.GraphQL(context.Background(), "query { viewer { login } }", nil, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Could not resolve") {
		t.Errorf("error = %v, want first graphql error message", err)
	}
}

func TestClientNames(t *testing.T) {
	client := NewClient("octocat", ".dotfiles", &TokenAuth{Token: "x"})

	if client.Owner() != "octocat" {
		t.Errorf("Owner() = %q", client.Owner())
	}
	if client.Repo() != ".dotfiles" {
		t.Errorf("Repo() = %q", client.Repo())
	}
	if client.FullName() != "octocat/.dotfiles" {
		t.Errorf("FullName() = %q", client.FullName())
	}
}
