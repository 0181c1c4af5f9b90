// Package todo promotes (issue)-marked checklist items from a report
// into standalone tracked issues and reconciles report checkboxes with
// the linked issues' open/closed state.
package todo

import (
	"fmt"
	"strings"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
)

// DefaultTitlePrefix leads promoted issue titles.
const DefaultTitlePrefix = "📋"

// PromotedLabel marks issues created from todo items.
const PromotedLabel = "todo-item"

// issueMarker tags checklist items that want their own issue.
const issueMarker = "(issue)"

// taskTitleLimit caps the task portion of a promoted title, in runes.
const taskTitleLimit = 80

// Options configures the todo service.
type Options struct {
	// ReportLabel marks report issues. Defaults to report.DefaultLabel.
	ReportLabel string

	// TitlePrefix leads promoted issue titles. Defaults to
	// DefaultTitlePrefix.
	TitlePrefix string

	// DryRun logs mutations instead of performing them.
	DryRun bool
}

// Service promotes todos and syncs report checkboxes.
type Service struct {
	api  githubapi.API
	opts Options
}

// NewService creates a todo service with defaulted options.
func NewService(api githubapi.API, opts Options) *Service {
	if opts.ReportLabel == "" {
		opts.ReportLabel = report.DefaultLabel
	}
	if opts.TitlePrefix == "" {
		opts.TitlePrefix = DefaultTitlePrefix
	}
	return &Service{api: api, opts: opts}
}

// IssueTitle builds the title a task promotes under.
func (s *Service) IssueTitle(category, task string) string {
	return fmt.Sprintf("%s [%s] %s", s.opts.TitlePrefix, category, truncateTask(task))
}

// promotableTask returns the task text of a checklist item carrying the
// issue marker.
func promotableTask(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToLower(trimmed), issueMarker) {
		return "", false
	}
	task := strings.TrimSpace(trimmed[len(issueMarker):])
	if task == "" {
		return "", false
	}
	return task, true
}

// truncateTask caps the task text for use in a title.
func truncateTask(task string) string {
	runes := []rune(task)
	if len(runes) <= taskTitleLimit {
		return task
	}
	return string(runes[:taskTitleLimit]) + "…"
}
