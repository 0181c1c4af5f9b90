package report

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/devlogkit/devlog/internal/commitmsg"
	"github.com/devlogkit/devlog/internal/githubapi"
)

// SectionFunc supplies an extra body section rendered below the todo
// block. Returning an empty string omits the section.
type SectionFunc func(ctx context.Context) (string, error)

// Options configures the report service.
type Options struct {
	// Label marks report issues. Defaults to DefaultLabel.
	Label string

	// TitlePrefix leads report titles. Defaults to DefaultTitlePrefix.
	TitlePrefix string

	// Location is the timezone for the day window and block
	// timestamps. Defaults to UTC.
	Location *time.Location

	// ExcludedTypes drops commits whose first message line matches.
	// Defaults to DefaultExcludedTypes.
	ExcludedTypes *regexp.Regexp

	// KeepDays is the CloseStale window. Defaults to DefaultKeepDays.
	KeepDays int

	// UpdateReadme maintains the latest-report link in the README.
	UpdateReadme bool

	// DryRun logs mutations instead of performing them.
	DryRun bool

	// Sections supply extra body sections, such as the problem-solving
	// profile.
	Sections []SectionFunc
}

// Service generates and maintains report issues.
type Service struct {
	api  githubapi.API
	opts Options
}

// NewService creates a report service with defaulted options.
func NewService(api githubapi.API, opts Options) *Service {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.TitlePrefix == "" {
		opts.TitlePrefix = DefaultTitlePrefix
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ExcludedTypes == nil {
		opts.ExcludedTypes = DefaultExcludedTypes
	}
	if opts.KeepDays <= 0 {
		opts.KeepDays = DefaultKeepDays
	}
	return &Service{api: api, opts: opts}
}

// Result summarizes a Generate run.
type Result struct {
	Issue      *githubapi.Issue
	Created    bool
	NewCommits int
	ClosedPrev []int
	Todos      []Todo
	DryRun     bool

	// TodoSources maps each (issue)-marked todo text from this run's
	// commits to the envelope that declared it, for the promotion pass.
	TodoSources map[string]*commitmsg.Commit
}

// dayEntry pairs a new commit block with the todos its envelope
// carried.
type dayEntry struct {
	block  CommitBlock
	todos  []commitmsg.TodoItem
	source *commitmsg.Commit
}

// Generate builds or updates the report for the day containing now
// from the branch's commits. Two-parent merge commits are expanded
// into the commits they brought in; commits already present in the
// report are skipped. Unchecked todos from previous still-open reports
// migrate into today's checklist before those reports are closed.
func (s *Service) Generate(ctx context.Context, branch string, now time.Time) (*Result, error) {
	now = now.In(s.opts.Location)
	date := now.Format("2006-01-02")
	title := Title(s.opts.TitlePrefix, date, s.api.Repo())

	commits, err := s.dayCommits(ctx, branch, now)
	if err != nil {
		return nil, err
	}

	today, err := s.findToday(ctx, date)
	if err != nil {
		return nil, err
	}

	body := &Body{Title: title}
	todayNumber := 0
	if today != nil {
		body = ParseBody(today.Body)
		body.Title = title
		todayNumber = today.Number
	}

	entries := s.collectEntries(branch, commits, body)
	if today == nil && len(entries) == 0 {
		log.Printf("[Report] Nothing to report on %s for %s", branch, date)
		return &Result{DryRun: s.opts.DryRun}, nil
	}

	migrated, closed, err := s.MigratePrevious(ctx, todayNumber, date)
	if err != nil {
		return nil, err
	}

	var newTodos []Todo
	sources := map[string]*commitmsg.Commit{}
	for _, entry := range entries {
		body.AppendBlock(branch, entry.block.Render())
		for _, item := range entry.todos {
			newTodos = append(newTodos, Todo{Category: item.Category, Text: todoText(item)})
			if item.WantsIssue {
				sources[item.Text] = entry.source
			}
		}
	}

	todos := MergeTodos(body.Todos, newTodos)
	todos = MergeTodos(migrated, todos)
	body.Todos = todos
	body.Extras = s.sections(ctx)

	rendered := Render(body)

	result := &Result{
		Created:     today == nil,
		NewCommits:  len(entries),
		ClosedPrev:  closed,
		Todos:       todos,
		DryRun:      s.opts.DryRun,
		TodoSources: sources,
	}

	if s.opts.DryRun {
		log.Printf("[Report] Dry run: would write %q with %d new commits", title, len(entries))
		return result, nil
	}

	if today == nil {
		labels := []string{s.opts.Label}
		for _, section := range body.Branches {
			labels = append(labels, BranchLabel(section.Branch))
		}
		issue, err := s.api.CreateIssue(ctx, githubapi.NewIssue{
			Title:  title,
			Body:   rendered,
			Labels: labels,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[Report] Created report #%d with %d commits", issue.Number, len(entries))
		result.Issue = issue
	} else {
		if rendered != today.Body {
			if _, err := s.api.EditIssue(ctx, today.Number, githubapi.IssueEdit{Body: &rendered}); err != nil {
				return nil, err
			}
			log.Printf("[Report] Updated report #%d with %d new commits", today.Number, len(entries))
			today.Body = rendered
		}

		var missing []string
		for _, section := range body.Branches {
			if label := BranchLabel(section.Branch); !today.HasLabel(label) {
				missing = append(missing, label)
			}
		}
		if len(missing) > 0 {
			if err := s.api.AddLabels(ctx, today.Number, missing); err != nil {
				return nil, err
			}
		}
		result.Issue = today
	}

	s.commentOnReferences(ctx, result.Issue.Number, entries)

	if s.opts.UpdateReadme {
		if err := s.UpdateReadme(ctx, result.Issue.Number, title); err != nil {
			log.Printf("[Report] README update failed: %v", err)
		}
	}

	return result, nil
}

// dayCommits returns the branch's commits for now's day, oldest first,
// with two-parent merges expanded into the commits they brought in.
// The merge commits themselves are dropped.
func (s *Service) dayCommits(ctx context.Context, branch string, now time.Time) ([]*githubapi.RepoCommit, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
	end := start.Add(24 * time.Hour)

	queue, err := s.api.ListBranchCommits(ctx, branch, start, end)
	if err != nil {
		return nil, err
	}

	var out []*githubapi.RepoCommit
	expanded := map[string]bool{}
	for i := 0; i < len(queue); i++ {
		rc := queue[i]
		if len(rc.Parents) == 2 || commitmsg.IsMerge(rc.Message) {
			if len(rc.Parents) == 2 && !expanded[rc.SHA] {
				expanded[rc.SHA] = true
				children, err := s.api.MergeChildren(ctx, rc)
				if err != nil {
					return nil, err
				}
				queue = append(queue, children...)
			}
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}

// findToday returns the open report issue for the date, or nil.
func (s *Service) findToday(ctx context.Context, date string) (*githubapi.Issue, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open", Labels: []string{s.opts.Label}})
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		if isTitleForDate(issue.Title, date) {
			return issue, nil
		}
	}
	return nil, nil
}

func isTitleForDate(title, date string) bool {
	if !IsReportTitle(title) {
		return false
	}
	d, ok := TitleDate(title)
	return ok && d == date
}

// collectEntries filters the day's commits down to the ones worth a
// new block: envelope-formatted, not excluded, not opted out and not
// already logged. Duplicate messages collapse to one entry.
func (s *Service) collectEntries(branch string, commits []*githubapi.RepoCommit, existing *Body) []dayEntry {
	var entries []dayEntry
	seen := map[string]bool{}

	for _, rc := range commits {
		msg := strings.TrimSpace(rc.Message)
		if msg == "" || seen[msg] {
			continue
		}
		seen[msg] = true

		firstLine, _, _ := strings.Cut(msg, "\n")
		if s.opts.ExcludedTypes.MatchString(firstLine) {
			log.Printf("[Report] Skipping excluded commit %s", shortSHA(rc.SHA))
			continue
		}
		if commitmsg.ShouldSkip(msg) {
			log.Printf("[Report] Skipping opted-out commit %s", shortSHA(rc.SHA))
			continue
		}

		parsed, err := commitmsg.Parse(msg)
		if err != nil {
			log.Printf("[Report] Skipping commit %s: %v", shortSHA(rc.SHA), err)
			continue
		}
		if existing.HasBlock(parsed.Title) {
			log.Printf("[Report] Commit %s already logged", shortSHA(rc.SHA))
			continue
		}

		parsed.SHA = rc.SHA
		parsed.Author = rc.AuthorLogin
		parsed.AuthoredAt = rc.AuthoredAt
		parsed.Branch = branch
		parsed.URL = rc.URL

		entries = append(entries, dayEntry{
			block:  s.blockFor(rc, parsed),
			todos:  parsed.Todos,
			source: parsed,
		})
	}
	return entries
}

// blockFor builds the rendered block input for one commit.
func (s *Service) blockFor(rc *githubapi.RepoCommit, parsed *commitmsg.Commit) CommitBlock {
	author := rc.AuthorName
	if author == "" {
		author = rc.AuthorLogin
	}
	if author == "" {
		author = "unknown"
	}

	var bodyLines []string
	for _, line := range strings.Split(parsed.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		bodyLines = append(bodyLines, strings.TrimSpace(strings.TrimPrefix(line, "-")))
	}

	return CommitBlock{
		Time:     rc.AuthoredAt.In(s.opts.Location).Format("15:04:05"),
		Title:    parsed.Title,
		Type:     parsed.Type,
		TypeDesc: commitmsg.TypeMeta(parsed.Type).Description,
		SHA:      rc.SHA,
		URL:      rc.URL,
		Author:   author,
		Body:     bodyLines,
		Related:  commitmsg.IssueRefs(parsed.Footer),
	}
}

// todoText restores the (issue) marker so the promotion pass can find
// the item in the rendered checklist.
func todoText(item commitmsg.TodoItem) string {
	if item.WantsIssue {
		return "(issue) " + item.Text
	}
	return item.Text
}

// MigratePrevious collects the unchecked todos from still-open report
// issues of earlier days and closes those issues. todayNumber guards
// the current report from being swept up; pass 0 when none exists yet.
func (s *Service) MigratePrevious(ctx context.Context, todayNumber int, date string) ([]Todo, []int, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open", Labels: []string{s.opts.Label}})
	if err != nil {
		return nil, nil, err
	}

	var carried []Todo
	var closed []int
	for _, issue := range issues {
		if issue.Number == todayNumber || !IsReportTitle(issue.Title) || isTitleForDate(issue.Title, date) {
			continue
		}

		var unchecked []Todo
		for _, t := range ParseBody(issue.Body).Todos {
			if !t.Checked {
				unchecked = append(unchecked, t)
			}
		}
		carried = MergeTodos(carried, unchecked)

		if s.opts.DryRun {
			log.Printf("[Report] Dry run: would close previous report #%d", issue.Number)
			continue
		}
		if err := s.api.CloseIssue(ctx, issue.Number); err != nil {
			return nil, nil, fmt.Errorf("failed to close previous report #%d: %w", issue.Number, err)
		}
		log.Printf("[Report] Closed previous report #%d, carried %d todos", issue.Number, len(unchecked))
		closed = append(closed, issue.Number)
	}
	return carried, closed, nil
}

// CloseStale closes open report issues dated more than the configured
// number of days before now. Titles without a date are left alone.
func (s *Service) CloseStale(ctx context.Context, now time.Time) ([]int, error) {
	now = now.In(s.opts.Location)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location).
		AddDate(0, 0, -s.opts.KeepDays)

	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open", Labels: []string{s.opts.Label}})
	if err != nil {
		return nil, err
	}

	var closed []int
	for _, issue := range issues {
		if !IsReportTitle(issue.Title) {
			continue
		}
		date, ok := TitleDate(issue.Title)
		if !ok {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", date, s.opts.Location)
		if err != nil || !day.Before(cutoff) {
			continue
		}

		if s.opts.DryRun {
			log.Printf("[Report] Dry run: would close stale report #%d (%s)", issue.Number, date)
			continue
		}
		if err := s.api.CloseIssue(ctx, issue.Number); err != nil {
			return closed, fmt.Errorf("failed to close stale report #%d: %w", issue.Number, err)
		}
		log.Printf("[Report] Closed stale report #%d (%s)", issue.Number, date)
		closed = append(closed, issue.Number)
	}
	return closed, nil
}

// readmeSectionRe matches the latest-report section in a README.
var readmeSectionRe = regexp.MustCompile(`## 📌 Latest Development Status Report\n\[[^\]]*\]\([^)]*\)\n`)

// UpdateReadme maintains the latest-report link section in the
// repository README, inserting it after the first heading when absent.
func (s *Service) UpdateReadme(ctx context.Context, number int, title string) error {
	readme, err := s.api.GetReadme(ctx)
	if err != nil {
		return err
	}
	if readme == nil {
		log.Printf("[Report] No README to update")
		return nil
	}

	section := fmt.Sprintf("## 📌 Latest Development Status Report\n[%s](../../issues/%d)\n", title, number)

	content := readme.Content
	switch {
	case readmeSectionRe.MatchString(content):
		content = readmeSectionRe.ReplaceAllString(content, section)
	default:
		idx := strings.Index(content, "#")
		if idx < 0 {
			content = section + "\n" + content
			break
		}
		end := strings.Index(content[idx:], "\n")
		if end < 0 {
			content = content + "\n\n" + section
			break
		}
		at := idx + end + 1
		content = content[:at] + "\n" + section + content[at:]
	}

	if content == readme.Content {
		return nil
	}

	if s.opts.DryRun {
		log.Printf("[Report] Dry run: would link report #%d in %s", number, readme.Path)
		return nil
	}

	message := fmt.Sprintf("docs: Update DSR link to #%d", number)
	if err := s.api.UpdateFile(ctx, readme.Path, message, content, readme.SHA); err != nil {
		return fmt.Errorf("failed to update %s: %w", readme.Path, err)
	}
	log.Printf("[Report] Linked report #%d in %s", number, readme.Path)
	return nil
}

// commentOnReferences notes each new commit on the issues its footer
// references. Failures are logged and do not fail the run.
func (s *Service) commentOnReferences(ctx context.Context, reportNumber int, entries []dayEntry) {
	for _, entry := range entries {
		for _, ref := range entry.block.Related {
			if ref == reportNumber {
				continue
			}
			comment := fmt.Sprintf("Referenced in commit %s\n\nCommit message:\n```\n%s\n```",
				shortSHA(entry.block.SHA), entry.block.Title)
			if _, err := s.api.CreateComment(ctx, ref, comment); err != nil {
				log.Printf("[Report] Failed to comment on #%d: %v", ref, err)
			}
		}
	}
}

// sections collects the configured extra sections. A failing provider
// is logged and skipped rather than failing the report.
func (s *Service) sections(ctx context.Context) []string {
	var extras []string
	for _, fn := range s.opts.Sections {
		section, err := fn(ctx)
		if err != nil {
			log.Printf("[Report] Extra section failed: %v", err)
			continue
		}
		if strings.TrimSpace(section) != "" {
			extras = append(extras, section)
		}
	}
	return extras
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
