// Package board mirrors repository issues onto the repository's
// Projects v2 board: open task issues, promoted todo issues, and the
// statistics behind the board stats command.
package board

import (
	"log"
	"strings"
	"time"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/projects"
	"github.com/devlogkit/devlog/internal/report"
)

// Values of the Status single select field.
const (
	StatusTodo       = "Todo"
	StatusInProgress = "In Progress"
	StatusInReview   = "In Review"
	StatusDone       = "Done"
)

// Priorities derived from priority labels.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// statusOptions is the option set ensured on the Status field.
var statusOptions = []string{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

const (
	categoryLabelPrefix = "category:"
	priorityLabelPrefix = "priority:"
)

// Pacing between item mutations. Projects v2 secondary rate limits
// throttle bursts, so adds are spaced out; todo batches run right
// after promotion and get the wider gap.
const (
	taskPace = 200 * time.Millisecond
	todoPace = 500 * time.Millisecond
)

// Options configures a board service.
type Options struct {
	// BoardTitle overrides the project title. Defaults to the
	// repository name with leading dots stripped.
	BoardTitle string
	// ExcludeLabels skips issues carrying any of these labels during
	// SyncTasks and Stats. Defaults to the report label.
	ExcludeLabels []string
	// DryRun classifies and reports without mutating the board.
	DryRun bool
}

// Service syncs repository issues onto the Projects v2 board.
type Service struct {
	api    githubapi.API
	boards *projects.Manager
	opts   Options

	// sleep paces mutations; tests stub it out.
	sleep func(time.Duration)
}

// NewService creates a board service. Zero option values get defaults.
func NewService(api githubapi.API, opts Options) *Service {
	if opts.BoardTitle == "" {
		opts.BoardTitle = projects.BoardTitle(api.Repo())
	}
	if opts.ExcludeLabels == nil {
		opts.ExcludeLabels = []string{report.DefaultLabel}
	}
	return &Service{
		api:    api,
		boards: projects.NewManager(api),
		opts:   opts,
		sleep:  time.Sleep,
	}
}

// filterTasks drops issues that should not appear as board tasks,
// reports among them.
func (s *Service) filterTasks(issues []*githubapi.Issue) []*githubapi.Issue {
	var tasks []*githubapi.Issue
	for _, issue := range issues {
		if s.excluded(issue) {
			continue
		}
		tasks = append(tasks, issue)
	}
	return tasks
}

func (s *Service) excluded(issue *githubapi.Issue) bool {
	for _, label := range s.opts.ExcludeLabels {
		if issue.HasLabel(label) {
			return true
		}
	}
	return false
}

// issueStatus derives the Status value from labels, falling back to
// the issue state.
func issueStatus(issue *githubapi.Issue) string {
	for _, label := range issue.Labels {
		switch strings.ToLower(label) {
		case "status:todo", "todo":
			return StatusTodo
		case "status:in-progress", "in-progress", "in progress":
			return StatusInProgress
		case "status:in-review", "in-review", "review":
			return StatusInReview
		case "status:done", "done", "completed":
			return StatusDone
		}
	}
	if strings.EqualFold(issue.State, "closed") {
		return StatusDone
	}
	return StatusTodo
}

// issuePriority reads the priority label; issues without one are
// medium.
func issuePriority(issue *githubapi.Issue) string {
	for _, label := range issue.Labels {
		lower := strings.ToLower(label)
		if !strings.HasPrefix(lower, priorityLabelPrefix) {
			continue
		}
		switch lower[len(priorityLabelPrefix):] {
		case "low":
			return PriorityLow
		case "medium":
			return PriorityMedium
		case "high":
			return PriorityHigh
		case "critical":
			return PriorityCritical
		default:
			log.Printf("[Board] Unknown priority label %q on #%d", label, issue.Number)
		}
	}
	return PriorityMedium
}

// issueCategory returns the category label's value, or "" when the
// issue has none.
func issueCategory(issue *githubapi.Issue) string {
	for _, label := range issue.Labels {
		if strings.HasPrefix(strings.ToLower(label), categoryLabelPrefix) {
			return label[len(categoryLabelPrefix):]
		}
	}
	return ""
}

// issueCategories collects the distinct categories of issues in
// first-seen order, for the Category field's option list.
func issueCategories(issues []*githubapi.Issue) []string {
	var names []string
	seen := map[string]bool{}
	for _, issue := range issues {
		name := issueCategory(issue)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
