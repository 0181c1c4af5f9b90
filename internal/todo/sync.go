package todo

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
)

// linkedLineRe matches a promoted checklist line: "- [ ] #N".
var linkedLineRe = regexp.MustCompile(`^\s*-\s*\[([ xX]?)\]\s*#(\d+)\s*$`)

// legacyLinkRe matches the old promoted shape: "- [ ] Task (#N)".
var legacyLinkRe = regexp.MustCompile(`\(#(\d+)\)`)

// checkboxTokenRe matches the checkbox token for state rewrites.
var checkboxTokenRe = regexp.MustCompile(`-\s*\[[ xX]?\]`)

// SyncResult summarizes a SyncCheckboxes run.
type SyncResult struct {
	Reports int   // report issues examined
	Flipped int   // checkbox states changed
	Updated []int // report issues rewritten
	DryRun  bool
}

// SyncCheckboxes reconciles promoted checklist lines in every open
// report against the linked issues' state: closed issues check their
// boxes, reopened ones uncheck them. Lines whose issue cannot be
// fetched are left alone.
func (s *Service) SyncCheckboxes(ctx context.Context) (*SyncResult, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open", Labels: []string{s.opts.ReportLabel}})
	if err != nil {
		return nil, fmt.Errorf("failed to list open reports: %w", err)
	}

	result := &SyncResult{DryRun: s.opts.DryRun}
	states := map[int]bool{}

	for _, issue := range issues {
		if !report.IsReportTitle(issue.Title) {
			continue
		}
		result.Reports++

		lines := strings.Split(issue.Body, "\n")
		changed := false
		for i, line := range lines {
			number, ok := linkedIssue(line)
			if !ok {
				continue
			}
			closed, err := s.issueClosed(ctx, number, states)
			if err != nil {
				log.Printf("[Todo] Skipping #%d state check: %v", number, err)
				continue
			}
			if updated := setChecked(line, closed); updated != line {
				lines[i] = updated
				changed = true
				result.Flipped++
			}
		}
		if !changed {
			continue
		}

		if s.opts.DryRun {
			log.Printf("[Todo] Dry run: would sync checkboxes in report #%d", issue.Number)
			continue
		}
		body := strings.Join(lines, "\n")
		if _, err := s.api.EditIssue(ctx, issue.Number, githubapi.IssueEdit{Body: &body}); err != nil {
			return result, fmt.Errorf("failed to sync report #%d: %w", issue.Number, err)
		}
		log.Printf("[Todo] Synced checkboxes in report #%d", issue.Number)
		result.Updated = append(result.Updated, issue.Number)
	}
	return result, nil
}

// linkedIssue extracts the issue number a checklist line points at.
func linkedIssue(line string) (int, bool) {
	if m := linkedLineRe.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[2])
		return n, err == nil
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "- [") {
		return 0, false
	}
	if m := legacyLinkRe.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	return 0, false
}

// setChecked rewrites the checkbox token to the wanted state.
func setChecked(line string, checked bool) string {
	box := "- [ ]"
	if checked {
		box = "- [x]"
	}
	return checkboxTokenRe.ReplaceAllString(line, box)
}

// issueClosed reports whether the issue is closed, caching lookups
// within a run.
func (s *Service) issueClosed(ctx context.Context, number int, cache map[int]bool) (bool, error) {
	if closed, ok := cache[number]; ok {
		return closed, nil
	}
	issue, err := s.api.GetIssue(ctx, number)
	if err != nil {
		return false, err
	}
	closed := strings.EqualFold(issue.State, "closed")
	cache[number] = closed
	return closed, nil
}
