package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
)

const (
	taskTableHeader  = "| Task ID | Task Name | Assignee | Expected Time | Actual Time | Status | Priority |"
	taskTableDivider = "| ------- | --------- | -------- | ------------- | ----------- | ------ | -------- |"

	statusInProgress = "🟡 In Progress"
	statusCompleted  = "✅ Completed"
)

// ApprovalResult reports what ProcessApproval did.
type ApprovalResult struct {
	// Action is the approval label that matched, empty when the issue
	// carries none.
	Action string
	// ReportNumber is the progress report touched on approval.
	ReportNumber int
	// ReportCreated reports whether the progress report was opened on
	// this run.
	ReportCreated bool
	// DailyUpdated reports whether today's daily report gained the
	// task todo.
	DailyUpdated bool
	DryRun       bool
}

// ProcessApproval reacts to the approval label on a proposal issue.
// Approval records the task in the progress report and in today's
// daily report; the proposal stays open so its daily checkbox tracks
// it until the work is done. Rejection and hold only comment.
func (s *Service) ProcessApproval(ctx context.Context, issue *githubapi.Issue, now time.Time) (*ApprovalResult, error) {
	res := &ApprovalResult{DryRun: s.opts.DryRun}
	if issue == nil {
		return res, nil
	}

	switch {
	case issue.HasLabel(LabelApproved):
		res.Action = LabelApproved
		return res, s.approve(ctx, issue, now, res)
	case issue.HasLabel(LabelRejected):
		res.Action = LabelRejected
		return res, s.comment(ctx, issue.Number, "❌ Task has been rejected. Please revise and resubmit.")
	case issue.HasLabel(LabelOnHold):
		res.Action = LabelOnHold
		return res, s.comment(ctx, issue.Number, "⏸️ Task has been put on hold. Further discussion needed.")
	default:
		log.Printf("[Tasks] Issue #%d carries no approval label", issue.Number)
		return res, nil
	}
}

func (s *Service) approve(ctx context.Context, issue *githubapi.Issue, now time.Time, res *ApprovalResult) error {
	category := categoryFromLabels(issue.Labels)
	entry := taskEntry(issue)

	progress, err := s.findProgressReport(ctx)
	if err != nil {
		return err
	}

	if s.opts.DryRun {
		if progress == nil {
			log.Printf("[Tasks] Dry run: would create %q and record task #%d under %s",
				progressReportTitle(s.opts.ProjectName), issue.Number, category)
		} else {
			log.Printf("[Tasks] Dry run: would record task #%d in #%d under %s",
				issue.Number, progress.Number, category)
		}
		return nil
	}

	if progress == nil {
		body := upsertTaskRow(progressReportBody(s.opts.ProjectName, now), entry, category, issue.Number)
		body = refreshProgress(body)
		progress, err = s.api.CreateIssue(ctx, githubapi.NewIssue{
			Title:  progressReportTitle(s.opts.ProjectName),
			Body:   body,
			Labels: []string{progressLabel},
		})
		if err != nil {
			return fmt.Errorf("failed to create the progress report: %w", err)
		}
		res.ReportCreated = true
		log.Printf("[Tasks] Created progress report #%d", progress.Number)
	} else {
		body := upsertTaskRow(progress.Body, entry, category, issue.Number)
		body = refreshProgress(body)
		if body != progress.Body {
			if _, err := s.api.EditIssue(ctx, progress.Number, githubapi.IssueEdit{Body: &body}); err != nil {
				return fmt.Errorf("failed to update the progress report: %w", err)
			}
		}
		comment := fmt.Sprintf("✅ Task #%d has been added to the %s category.", issue.Number, category)
		if _, err := s.api.CreateComment(ctx, progress.Number, comment); err != nil {
			log.Printf("[Tasks] Failed to comment on report #%d: %v", progress.Number, err)
		}
	}
	res.ReportNumber = progress.Number

	updated, err := s.addDailyTodo(ctx, issue, category, now)
	if err != nil {
		log.Printf("[Tasks] Failed to add task #%d to today's report: %v", issue.Number, err)
	}
	res.DailyUpdated = updated

	return s.comment(ctx, issue.Number, "✅ Task has been approved and added to the report.")
}

// CompleteResult reports one CompleteTask run.
type CompleteResult struct {
	// ReportNumber is zero when no in-progress row matched.
	ReportNumber int
	Completed    bool
	DryRun       bool
}

// CompleteTask flips a closed task's progress report row to completed
// and recomputes the progress section. Issues without an in-progress
// row are a no-op, so any closed issue can be passed through.
func (s *Service) CompleteTask(ctx context.Context, issue *githubapi.Issue) (*CompleteResult, error) {
	res := &CompleteResult{DryRun: s.opts.DryRun}
	if issue == nil {
		return res, nil
	}

	progress, err := s.findProgressReport(ctx)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return res, nil
	}

	body, flipped := completeTaskRow(progress.Body, issue.Number)
	if !flipped {
		return res, nil
	}
	res.ReportNumber = progress.Number
	res.Completed = true

	if s.opts.DryRun {
		log.Printf("[Tasks] Dry run: would mark TSK-%d completed in #%d", issue.Number, progress.Number)
		return res, nil
	}

	body = refreshProgress(body)
	if _, err := s.api.EditIssue(ctx, progress.Number, githubapi.IssueEdit{Body: &body}); err != nil {
		return nil, fmt.Errorf("failed to update the progress report: %w", err)
	}
	comment := fmt.Sprintf("✅ Task TSK-%d has been completed.", issue.Number)
	if _, err := s.api.CreateComment(ctx, progress.Number, comment); err != nil {
		log.Printf("[Tasks] Failed to comment on report #%d: %v", progress.Number, err)
	}
	log.Printf("[Tasks] Marked TSK-%d completed in report #%d", issue.Number, progress.Number)
	return res, nil
}

// addDailyTodo inserts the approved task as an unchecked `#N` todo
// under its category in today's daily report, when one exists.
func (s *Service) addDailyTodo(ctx context.Context, issue *githubapi.Issue, category string, now time.Time) (bool, error) {
	date := now.In(s.opts.Location).Format("2006-01-02")

	open, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open", Labels: []string{report.DefaultLabel}})
	if err != nil {
		return false, fmt.Errorf("failed to list open reports: %w", err)
	}
	var daily *githubapi.Issue
	for _, candidate := range open {
		if !report.IsReportTitle(candidate.Title) {
			continue
		}
		if d, ok := report.TitleDate(candidate.Title); ok && d == date {
			daily = candidate
			break
		}
	}
	if daily == nil {
		log.Printf("[Tasks] No report for %s, task #%d gets no daily todo", date, issue.Number)
		return false, nil
	}

	name := categoryName(category)
	todo := report.Todo{Category: name, Text: fmt.Sprintf("#%d", issue.Number)}
	body, changed := report.UpsertTodos(daily.Body, []report.Todo{todo})
	if !changed {
		return false, nil
	}

	if _, err := s.api.EditIssue(ctx, daily.Number, githubapi.IssueEdit{Body: &body}); err != nil {
		return false, fmt.Errorf("failed to update report #%d: %w", daily.Number, err)
	}
	text := fmt.Sprintf("New task has been added:\n\n@%s\n- [ ] #%d", name, issue.Number)
	if _, err := s.api.CreateComment(ctx, daily.Number, text); err != nil {
		log.Printf("[Tasks] Failed to comment on report #%d: %v", daily.Number, err)
	}
	log.Printf("[Tasks] Added task #%d to report #%d under %s", issue.Number, daily.Number, name)
	return true, nil
}

func (s *Service) comment(ctx context.Context, number int, body string) error {
	if s.opts.DryRun {
		log.Printf("[Tasks] Dry run: would comment on #%d: %s", number, body)
		return nil
	}
	if _, err := s.api.CreateComment(ctx, number, body); err != nil {
		return fmt.Errorf("failed to comment on #%d: %w", number, err)
	}
	return nil
}

// progressReportTitle is the title of the open issue that accumulates
// task rows for the project.
func progressReportTitle(project string) string {
	return fmt.Sprintf("[%s] Progress Report", project)
}

func (s *Service) findProgressReport(ctx context.Context) (*githubapi.Issue, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open"})
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}
	title := progressReportTitle(s.opts.ProjectName)
	for _, issue := range issues {
		if issue.Title == title {
			return issue, nil
		}
	}
	return nil, nil
}

// taskEntry renders the progress report row for an approved task.
func taskEntry(issue *githubapi.Issue) string {
	assignees := "TBD"
	if len(issue.Assignees) > 0 {
		assignees = strings.Join(issue.Assignees, ", ")
	}
	return fmt.Sprintf("| TSK-%d | %s | %s | - | - | %s | - |",
		issue.Number, taskName(issue.Title), assignees, statusInProgress)
}

// upsertTaskRow places the task's row in its category table, replacing
// an earlier row for the same issue. Bodies without the category
// section come back unchanged.
func upsertTaskRow(body, entry, category string, number int) string {
	section := strings.Index(body, fmt.Sprintf("<h3>%s</h3>", category))
	if section == -1 {
		return body
	}
	header := strings.Index(body[section:], taskTableHeader)
	if header == -1 {
		return body
	}
	header += section
	end := strings.Index(body[header:], "</details>")
	if end == -1 {
		return body
	}
	end += header

	lines := strings.Split(strings.TrimSpace(body[header:end]), "\n")

	tag := fmt.Sprintf("| TSK-%d ", number)
	replaced := false
	for i, line := range lines {
		if strings.Contains(line, tag) {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		if len(lines) > 2 {
			lines = append(lines, entry)
		} else {
			lines = []string{taskTableHeader, taskTableDivider, entry}
		}
	}

	return body[:header] + strings.Join(lines, "\n") + "\n\n" + body[end:]
}

// completeTaskRow flips the task's row status to completed. It reports
// false when the body has no in-progress row for the task.
func completeTaskRow(body string, number int) (string, bool) {
	tag := fmt.Sprintf("| TSK-%d ", number)
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if !strings.Contains(line, tag) {
			continue
		}
		if !strings.Contains(line, statusInProgress) {
			return body, false
		}
		lines[i] = strings.Replace(line, statusInProgress, statusCompleted, 1)
		return strings.Join(lines, "\n"), true
	}
	return body, false
}

// refreshProgress recomputes the Overall Progress section from the
// task rows.
func refreshProgress(body string) string {
	completed, inProgress, total := progressStats(body)
	section := progressSection(completed, inProgress, total)

	start := strings.Index(body, "### Overall Progress")
	if start == -1 {
		return body
	}
	end := strings.Index(body[start:], "## 📝 Issues")
	if end == -1 {
		return body
	}
	end += start
	return body[:start] + section + "\n\n" + body[end:]
}

func progressStats(body string) (completed, inProgress, total int) {
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, "| TSK-") {
			continue
		}
		total++
		switch {
		case strings.Contains(line, statusCompleted):
			completed++
		case strings.Contains(line, statusInProgress):
			inProgress++
		}
	}
	return completed, inProgress, total
}

func progressSection(completed, inProgress, total int) string {
	if total == 0 {
		return "### Overall Progress\n\n```mermaid\npie title Task Progress Status\n    \"In Progress\" : 0\n    \"Completed\" : 0\n```"
	}
	completedPct := float64(completed) / float64(total) * 100
	inProgressPct := float64(inProgress) / float64(total) * 100
	return fmt.Sprintf(
		"### Overall Progress\n\nProgress Status: %d/%d completed (%.1f%%)\n\n```mermaid\npie title Task Progress Status\n    \"Completed\" : %.1f\n    \"In Progress\" : %.1f\n```",
		completed, total, completedPct, completedPct, inProgressPct)
}

// progressReportBody is the initial progress report, one collapsed
// table per category.
func progressReportBody(project string, now time.Time) string {
	date := now.Format("2006-01-02")

	sections := make([]string, 0, len(taskCategories))
	for _, category := range taskCategories {
		sections = append(sections, fmt.Sprintf("<details>\n<summary><h3>%s</h3></summary>\n\n%s\n%s\n\n</details>",
			category, taskTableHeader, taskTableDivider))
	}

	var b strings.Builder
	b.WriteString("<div align=\"center\">\n\n")
	b.WriteString("![header](https://capsule-render.vercel.app/api?type=transparent&color=39FF14&height=150&section=header&text=Project%20Report&fontSize=50&animation=fadeIn&fontColor=39FF14&desc=Project%20Progress%20Report&descSize=25&descAlignY=75)\n\n")
	b.WriteString("# 📊 Project Progress Report\n\n")
	b.WriteString("</div>\n\n")
	b.WriteString("## 📌 Basic Information\n\n")
	b.WriteString("**Project Name**: " + project + "  \n")
	b.WriteString("**Report Date**: " + date + "  \n")
	b.WriteString("**Report Period**: " + date + " ~ Ongoing\n\n")
	b.WriteString("## 📋 Task Details\n\n")
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\n## 📊 Progress Summary\n\n")
	b.WriteString(progressSection(0, 0, 0))
	b.WriteString("\n\n## 📝 Issues and Risks\n\n")
	b.WriteString("| Type | Content | Mitigation Plan |\n")
	b.WriteString("| ---- | ------- | --------------- |\n")
	b.WriteString("| - | - | - |\n\n")
	b.WriteString("## 📈 Next Steps\n\n")
	b.WriteString("1. Initial Setup and Environment Configuration\n")
	b.WriteString("2. Define Detailed Work Items\n")
	b.WriteString("3. Regular Progress Updates\n\n")
	b.WriteString("---\n")
	b.WriteString("> This report is automatically generated and will be continuously updated.\n")
	return b.String()
}
