package todo

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/devlogkit/devlog/internal/commitmsg"
	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
)

// Promoted is one checklist item that now has a standalone issue.
type Promoted struct {
	Number   int
	Title    string
	Category string
	Task     string
	Reused   bool
}

// PromoteResult summarizes a Promote run.
type PromoteResult struct {
	Promoted []Promoted
	Updated  bool
	DryRun   bool
}

// Promote creates a standalone issue for every (issue)-marked checklist
// item in the report and rewrites each promoted line into a bare issue
// reference. An item whose title already exists among open promoted
// issues reuses that issue instead. sources maps task texts to the
// commit envelopes that declared them and enriches the issue bodies;
// pass nil when unknown.
func (s *Service) Promote(ctx context.Context, dsr *githubapi.Issue, sources map[string]*commitmsg.Commit, now time.Time) (*PromoteResult, error) {
	result := &PromoteResult{DryRun: s.opts.DryRun}
	if dsr == nil {
		return result, nil
	}

	type candidate struct {
		category string
		task     string
	}
	var candidates []candidate
	for _, t := range report.ParseBody(dsr.Body).Todos {
		if task, ok := promotableTask(t.Text); ok {
			candidates = append(candidates, candidate{category: t.Category, task: task})
		}
	}
	if len(candidates) == 0 {
		return result, nil
	}

	existing, err := s.openTodoIssues(ctx)
	if err != nil {
		return nil, err
	}

	body := dsr.Body
	for _, c := range candidates {
		title := s.IssueTitle(c.category, c.task)

		if hit, ok := existing[strings.TrimSpace(title)]; ok {
			log.Printf("[Todo] Reusing issue #%d for %q", hit.Number, c.task)
			result.Promoted = append(result.Promoted, Promoted{
				Number:   hit.Number,
				Title:    hit.Title,
				Category: c.category,
				Task:     c.task,
				Reused:   true,
			})
			body = replaceTodoLine(body, c.task, hit.Number)
			continue
		}

		if s.opts.DryRun {
			log.Printf("[Todo] Dry run: would create %q", title)
			result.Promoted = append(result.Promoted, Promoted{
				Title:    title,
				Category: c.category,
				Task:     c.task,
			})
			continue
		}

		source := sources[c.task]
		req := githubapi.NewIssue{
			Title:  title,
			Body:   s.issueBody(c.category, c.task, source, dsr.Number, now),
			Labels: issueLabels(c.category, c.task),
		}
		if source != nil && source.Author != "" {
			req.Assignees = []string{source.Author}
		}
		issue, err := s.api.CreateIssue(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to promote todo %q: %w", c.task, err)
		}
		log.Printf("[Todo] Created issue #%d: %s", issue.Number, title)

		note := fmt.Sprintf("Created issue #%d from todo item", issue.Number)
		if _, err := s.api.CreateComment(ctx, dsr.Number, note); err != nil {
			log.Printf("[Todo] Failed to comment on report #%d: %v", dsr.Number, err)
		}

		result.Promoted = append(result.Promoted, Promoted{
			Number:   issue.Number,
			Title:    issue.Title,
			Category: c.category,
			Task:     c.task,
		})
		body = replaceTodoLine(body, c.task, issue.Number)
	}

	if body != dsr.Body {
		if s.opts.DryRun {
			log.Printf("[Todo] Dry run: would rewrite report #%d", dsr.Number)
			return result, nil
		}
		if _, err := s.api.EditIssue(ctx, dsr.Number, githubapi.IssueEdit{Body: &body}); err != nil {
			return nil, fmt.Errorf("failed to rewrite report #%d: %w", dsr.Number, err)
		}
		dsr.Body = body
		result.Updated = true
		log.Printf("[Todo] Rewrote %d checklist lines in report #%d", len(result.Promoted), dsr.Number)
	}
	return result, nil
}

// openTodoIssues maps open promoted issues by trimmed title.
func (s *Service) openTodoIssues(ctx context.Context) (map[string]*githubapi.Issue, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open", Labels: []string{PromotedLabel}})
	if err != nil {
		return nil, fmt.Errorf("failed to list open todo issues: %w", err)
	}
	byTitle := make(map[string]*githubapi.Issue, len(issues))
	for _, issue := range issues {
		byTitle[strings.TrimSpace(issue.Title)] = issue
	}
	return byTitle, nil
}

// issueBody renders the promoted issue body. Source commit lines appear
// only when the envelope is known.
func (s *Service) issueBody(category, task string, source *commitmsg.Commit, reportNumber int, now time.Time) string {
	lines := []string{
		fmt.Sprintf("# %s [%s] Task", categoryEmoji(category), category),
		"",
		"> **Auto-generated from commit TODO**",
	}
	if reportNumber > 0 {
		lines = append(lines, fmt.Sprintf("> **DSR Reference:** #%d", reportNumber))
	}
	if source != nil {
		lines = append(lines, fmt.Sprintf("> **Source Commit:** %s - %s", source.Type, source.Title))
	}
	lines = append(lines,
		fmt.Sprintf("> **Created:** %s", now.UTC().Format("2006-01-02 15:04 UTC")),
		"",
		"## 📝 Task Description",
		"",
		task,
		"",
		"## 🎯 Acceptance Criteria",
		"",
		"- [ ] Task implementation completed",
		"- [ ] Code reviewed and tested",
		"- [ ] Documentation updated if needed",
		"- [ ] Related DSR checkbox marked as complete",
		"",
		"## 🔗 Context Information",
		"",
	)
	if source != nil {
		lines = append(lines,
			fmt.Sprintf("- **Commit Type:** `%s`", source.Type),
			fmt.Sprintf("- **Commit Title:** %s", source.Title),
		)
		if source.Scope != "" {
			lines = append(lines, fmt.Sprintf("- **Scope:** `%s`", source.Scope))
		}
		if source.Body != "" {
			lines = append(lines, "", "**Commit Details:**", "")
			for _, detail := range strings.Split(source.Body, "\n") {
				detail = strings.TrimSpace(detail)
				if detail == "" {
					continue
				}
				if !strings.HasPrefix(detail, "-") {
					detail = "- " + detail
				}
				lines = append(lines, detail)
			}
		}
		if source.Author != "" {
			lines = append(lines, fmt.Sprintf("- **Author:** @%s", source.Author))
		}
	}
	lines = append(lines,
		fmt.Sprintf("- **Repository:** `%s`", s.api.Repo()),
		"",
		"---",
		"",
		"🤖 *This issue was automatically generated from a commit TODO item.*",
		"",
		fmt.Sprintf("**Category:** `%s` • **Priority:** %s", category, priorityBadge(category)),
	)
	return strings.Join(lines, "\n")
}

// Priority tiers by category, shared by the label heuristic and the
// footer badge.
var (
	highPriorityCategories   = map[string]bool{"security": true, "critical": true, "bugfix": true}
	mediumPriorityCategories = map[string]bool{"performance": true, "testing": true, "api": true}
	lowPriorityCategories    = map[string]bool{"documentation": true, "cleanup": true, "maintenance": true}
)

// issueLabels builds the label set for a promoted issue.
func issueLabels(category, task string) []string {
	labels := []string{PromotedLabel, "automated", "category:" + strings.ToLower(category)}
	if p := taskPriority(category, task); p != "" {
		labels = append(labels, "priority:"+p)
	}
	if k := taskKind(task); k != "" {
		labels = append(labels, "type:"+k)
	}
	return labels
}

// taskPriority derives a priority level from the category and task
// keywords. Empty means no priority label.
func taskPriority(category, task string) string {
	cat := strings.ToLower(category)
	text := strings.ToLower(task)
	switch {
	case highPriorityCategories[cat] || containsAny(text, "urgent", "critical", "security", "vulnerability"):
		return "high"
	case mediumPriorityCategories[cat] || containsAny(text, "performance", "optimize", "test", "important"):
		return "medium"
	case lowPriorityCategories[cat]:
		return "low"
	}
	return ""
}

// taskKind derives a type label from task keywords. Empty means no
// type label.
func taskKind(task string) string {
	text := strings.ToLower(task)
	switch {
	case containsAny(text, "bug", "fix", "error", "issue"):
		return "bug"
	case containsAny(text, "feature", "add", "implement"):
		return "enhancement"
	case containsAny(text, "test", "testing", "coverage"):
		return "testing"
	case containsAny(text, "docs", "documentation", "readme"):
		return "documentation"
	}
	return ""
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// categoryEmojis decorate promoted issue headers.
var categoryEmojis = map[string]string{
	"security":      "🛡️",
	"performance":   "⚡",
	"testing":       "🧪",
	"documentation": "📚",
	"ui":            "🎨",
	"ux":            "👥",
	"api":           "🔌",
	"database":      "🗄️",
	"deployment":    "🚀",
	"monitoring":    "📊",
	"refactoring":   "♻️",
	"maintenance":   "🔧",
	"feature":       "✨",
	"bugfix":        "🐛",
	"enhancement":   "📈",
	"cleanup":       "🧹",
	"optimization":  "🔄",
}

func categoryEmoji(category string) string {
	if emoji, ok := categoryEmojis[strings.ToLower(category)]; ok {
		return emoji
	}
	return "📋"
}

// priorityBadge renders the footer badge for a category.
func priorityBadge(category string) string {
	cat := strings.ToLower(category)
	switch {
	case highPriorityCategories[cat]:
		return "🔴 High"
	case mediumPriorityCategories[cat]:
		return "🟡 Medium"
	}
	return "🟢 Normal"
}

// todoLineRe matches a checklist line: indentation, checkbox, text.
var todoLineRe = regexp.MustCompile(`^(\s*)-\s*\[([ xX]?)\]\s*(.*)$`)

// replaceTodoLine rewrites the first checklist line carrying the task
// into a bare issue reference, preserving indentation and checked
// state.
func replaceTodoLine(body, task string, number int) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		m := todoLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		current, ok := promotableTask(m[3])
		if !ok || current != task {
			continue
		}
		box := " "
		if strings.EqualFold(m[2], "x") {
			box = "x"
		}
		lines[i] = fmt.Sprintf("%s- [%s] #%d", m[1], box, number)
		return strings.Join(lines, "\n")
	}
	return body
}
