// Package tasks runs the proposal and approval workflow. Proposal CSV
// files become labeled issues, and approval labels drive a per-project
// progress report plus a todo entry in the daily report.
package tasks

import (
	"regexp"
	"strings"
	"time"

	"github.com/devlogkit/devlog/internal/githubapi"
)

// Approval labels a reviewer puts on a proposal issue.
const (
	LabelPending  = "⌛ Pending Review"
	LabelApproved = "✅ Approved"
	LabelRejected = "❌ Rejected"
	LabelOnHold   = "⏸️ On Hold"
)

// progressLabel marks the per-project progress report issue.
const progressLabel = "📊 In Progress"

// taskCategories are the progress report sections, in render order.
// The first entry is the default for tasks without a category label.
var taskCategories = []string{
	"🔧 Feature",
	"🎨 UI/UX",
	"🔍 QA/Test",
	"📚 Docs",
	"🛠 Maintenance",
}

// Options configure a task Service.
type Options struct {
	// ProjectName is the display name used in issue titles. Defaults
	// to the sanitized repository name.
	ProjectName string
	// Location is the timezone used to find today's daily report.
	Location *time.Location
	// DryRun logs intended writes instead of performing them.
	DryRun bool
}

// Service implements the proposal and approval operations.
type Service struct {
	api  githubapi.API
	opts Options
}

// NewService creates a task service for one repository.
func NewService(api githubapi.API, opts Options) *Service {
	if opts.ProjectName == "" {
		opts.ProjectName = SanitizeProjectName(api.Repo())
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{api: api, opts: opts}
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// SanitizeProjectName turns a repository name into the display name
// used in issue titles. Leading dots are dropped so dotfile repos read
// naturally, and runs of special characters collapse to single spaces.
func SanitizeProjectName(name string) string {
	name = strings.TrimLeft(name, ".")
	name = nonWordRe.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}

// categoryFromLabels picks the task category from issue labels.
func categoryFromLabels(labels []string) string {
	for _, label := range labels {
		for _, category := range taskCategories {
			if label == category {
				return category
			}
		}
	}
	return taskCategories[0]
}

// categoryName strips the emoji prefix from a category, leaving the
// name used in daily report todo sections.
func categoryName(category string) string {
	if _, name, ok := strings.Cut(category, " "); ok {
		return name
	}
	return category
}

// taskName strips the [project] prefix from a proposal issue title.
func taskName(title string) string {
	if strings.HasPrefix(title, "[") {
		if i := strings.Index(title, "] "); i >= 0 {
			return title[i+2:]
		}
	}
	return title
}
