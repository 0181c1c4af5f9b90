package testing

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"time"

	"github.com/devlogkit/devlog/internal/githubapi"
)

// NewClientFor returns a client for owner/repo whose REST and GraphQL
// traffic both hit a local httptest server running handler. The
// returned cleanup function must be called to close the server.
func NewClientFor(owner, repo string, handler http.Handler) (*githubapi.Client, func()) {
	srv := httptest.NewServer(handler)

	client := githubapi.NewClient(owner, repo, &githubapi.TokenAuth{Token: "test-token"}).
		WithBaseURLs(srv.URL+"/", srv.URL+"/graphql").
		WithRetry(1, time.Millisecond)

	cleanup := func() { srv.Close() }
	return client, cleanup
}

// NewMockAPIServer returns a client for owner/repo backed by a local
// httptest server that responds to the minimal set of endpoints used
// by tests:
// - GET  /repos/owner/repo/issues -> []
// - POST /repos/owner/repo/issues -> {"number": 101, ...}
// - POST /repos/owner/repo/issues/{number}/comments -> {"id": 123456}
// - GET  /repos/owner/repo/commits -> []
// - GET  /repos/owner/repo/labels/{name} -> 404 (existence check)
// - POST /repos/owner/repo/labels -> 201
// - GET  /repos/owner/repo/readme -> base64 README stub
// - POST /graphql -> {"data": {}}
// The returned cleanup function must be called to close the server.
func NewMockAPIServer() (*githubapi.Client, func()) {
	mux := http.NewServeMux()

	commentRe := regexp.MustCompile(`/issues/\d+/comments$`)
	mux.HandleFunc("/repos/owner/repo/issues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"number":   101,
				"node_id":  "I_mock",
				"title":    "mock issue",
				"state":    "open",
				"html_url": "https://example.com/owner/repo/issues/101",
			})
			return
		}
		_, _ = w.Write([]byte("[]"))
	})

	mux.HandleFunc("/repos/owner/repo/issues/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && commentRe.MatchString(r.URL.Path) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]int{"id": 123456})
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/repos/owner/repo/commits", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	})

	mux.HandleFunc("/repos/owner/repo/labels", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"name": "mock"})
			return
		}
		_, _ = w.Write([]byte("[]"))
	})

	mux.HandleFunc("/repos/owner/repo/labels/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	mux.HandleFunc("/repos/owner/repo/readme", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":     "README.md",
			"path":     "README.md",
			"sha":      "readme-sha",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("# Mock\n")),
		})
	})

	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {}}`))
	})

	return NewClientFor("owner", "repo", mux)
}
