// Package event decodes the GitHub event payloads the automation is
// triggered by, both from GITHUB_EVENT_PATH in CI and from webhook
// deliveries in server mode.
package event

import "strings"

// Push is the payload of a push event.
type Push struct {
	Ref        string       `json:"ref"`
	Before     string       `json:"before"`
	After      string       `json:"after"`
	Commits    []PushCommit `json:"commits"`
	HeadCommit *PushCommit  `json:"head_commit"`
	Repository Repository   `json:"repository"`
	Pusher     Pusher       `json:"pusher"`
	Sender     User         `json:"sender"`
}

// PushCommit is a commit entry inside a push payload.
type PushCommit struct {
	ID        string       `json:"id"`
	Message   string       `json:"message"`
	Timestamp string       `json:"timestamp"`
	URL       string       `json:"url"`
	Distinct  bool         `json:"distinct"`
	Author    CommitAuthor `json:"author"`
}

// CommitAuthor identifies a commit author inside a push payload.
type CommitAuthor struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Pusher is the account that performed a push.
type Pusher struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Issues is the payload of an issues event.
type Issues struct {
	Action     string     `json:"action"`
	Issue      Issue      `json:"issue"`
	Label      *Label     `json:"label,omitempty"`
	Repository Repository `json:"repository"`
	Sender     User       `json:"sender"`
}

// IssueComment is the payload of an issue_comment event.
type IssueComment struct {
	Action     string     `json:"action"`
	Issue      Issue      `json:"issue"`
	Comment    Comment    `json:"comment"`
	Repository Repository `json:"repository"`
	Sender     User       `json:"sender"`
}

// Issue carries the fields the automation reads from issue payloads.
type Issue struct {
	Number      int     `json:"number"`
	NodeID      string  `json:"node_id"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	State       string  `json:"state"`
	HTMLURL     string  `json:"html_url"`
	Labels      []Label `json:"labels"`
	User        User    `json:"user"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request,omitempty"`
}

// HasLabel reports whether the issue carries the named label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// Label is a label reference inside a payload.
type Label struct {
	Name string `json:"name"`
}

// Comment is an issue comment inside a payload.
type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User User   `json:"user"`
}

// Repository identifies the repository an event belongs to.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Owner         User   `json:"owner"`
}

// DisplayName is the repository name with leading dots stripped, the
// form used in issue titles (".github" style repos read poorly there).
func (r *Repository) DisplayName() string {
	return strings.TrimLeft(r.Name, ".")
}

// User is an account reference inside a payload.
type User struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}
