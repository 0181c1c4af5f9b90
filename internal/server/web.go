package server

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devlogkit/devlog/internal/runstore"
)

// Run history pages. JSON comes back when the client asks for it
// (Accept header or ?format=json); browsers get plain HTML tables.

var runListTmpl = template.Must(template.New("runs").Parse(`<!DOCTYPE html>
<html>
<head><title>devlog runs</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #ddd; }
.status-succeeded { color: #198754; }
.status-failed { color: #dc3545; }
.status-running { color: #0d6efd; }
.status-pending { color: #6c757d; }
</style>
</head>
<body>
<h1>Recent runs</h1>
<table>
<tr><th>ID</th><th>Event</th><th>Action</th><th>Repository</th><th>Status</th><th>Attempt</th><th>Updated</th></tr>
{{range .Runs}}
<tr>
<td><a href="/runs/{{.ID}}">{{.ID}}</a></td>
<td>{{.Event}}</td>
<td>{{.Action}}</td>
<td>{{.Repo}}</td>
<td class="status-{{.Status}}">{{.Status}}</td>
<td>{{.Attempt}}</td>
<td>{{.UpdatedAt.Format "2006-01-02 15:04:05"}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

var runDetailTmpl = template.Must(template.New("run").Parse(`<!DOCTYPE html>
<html>
<head><title>run {{.Run.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
dt { font-weight: bold; margin-top: 0.6rem; }
pre { background: #f6f8fa; padding: 0.8rem; }
</style>
</head>
<body>
<p><a href="/runs">&larr; all runs</a></p>
<h1>Run {{.Run.ID}}</h1>
<dl>
<dt>Event</dt><dd>{{.Run.Event}} {{.Run.Action}}</dd>
<dt>Repository</dt><dd>{{.Run.Repo}}</dd>
<dt>Status</dt><dd>{{.Run.Status}} (attempt {{.Run.Attempt}})</dd>
{{if .Run.Error}}<dt>Error</dt><dd><pre>{{.Run.Error}}</pre></dd>{{end}}
<dt>Created</dt><dd>{{.Run.CreatedAt.Format "2006-01-02 15:04:05"}}</dd>
<dt>Updated</dt><dd>{{.Run.UpdatedAt.Format "2006-01-02 15:04:05"}}</dd>
</dl>
{{if .Run.Logs}}
<h2>Log</h2>
<pre>{{range .Run.Logs}}{{.Timestamp.Format "15:04:05"}} [{{.Level}}] {{.Message}}
{{end}}</pre>
{{end}}
</body>
</html>
`))

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return r.Header.Get("Accept") == "application/json"
}

func (h *Handler) handleRunList(w http.ResponseWriter, r *http.Request) {
	runs := h.runs.List()

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
		return
	}

	data := struct {
		Runs []*runstore.Run
	}{Runs: runs}
	if err := runListTmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, ok := h.runs.Get(id)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, run)
		return
	}

	data := struct {
		Run *runstore.Run
	}{Run: run}
	if err := runDetailTmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
