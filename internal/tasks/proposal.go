package tasks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/devlogkit/devlog/internal/githubapi"
)

// DefaultDir is the repository directory scanned for proposal files.
const DefaultDir = "TaskProposals"

// Section headers of a proposal CSV file.
const (
	sectionName     = "[Task Name]"
	sectionPurpose  = "[Task Purpose]"
	sectionScope    = "[Task Scope]"
	sectionRequired = "[Required Features]"
	sectionOptional = "[Optional Features]"
	sectionSchedule = "[Schedule]"
)

// Proposal is the parsed content of one proposal CSV file. Header rows
// before the first section hold the proposer and dates; the sections
// hold the free-text blocks and the schedule.
type Proposal struct {
	TaskName     string
	Proposer     string
	ProposalDate string
	TargetDate   string
	Purpose      string
	Scope        string
	Required     string
	// Optional may be empty; it renders as "-" in the issue body.
	Optional string
	Schedule []ScheduleEntry
}

// ScheduleEntry is one `task,start,duration` row of the schedule
// section, for example `Design draft,2026-03-01,3d`.
type ScheduleEntry struct {
	Task     string
	Start    string
	Duration string
}

// ParseProposal reads a proposal CSV. Lines before the first
// `[Section]` header are `key,value` pairs; everything after a header
// belongs to that section until the next one.
func ParseProposal(r io.Reader) (*Proposal, error) {
	p := &Proposal{}
	sections := make(map[string][]string)
	var current string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = line
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], line)
			continue
		}
		key, value, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Proposer":
			p.Proposer = strings.TrimSpace(value)
		case "Proposal Date":
			p.ProposalDate = strings.TrimSpace(value)
		case "Target Date":
			p.TargetDate = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proposal: %w", err)
	}

	p.TaskName = strings.Join(sections[sectionName], " ")
	p.Purpose = strings.Join(sections[sectionPurpose], "\n")
	p.Scope = strings.Join(sections[sectionScope], "\n")
	p.Required = strings.Join(sections[sectionRequired], "\n")
	p.Optional = strings.Join(sections[sectionOptional], "\n")

	for _, row := range sections[sectionSchedule] {
		parts := strings.Split(row, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed schedule row %q", row)
		}
		p.Schedule = append(p.Schedule, ScheduleEntry{
			Task:     strings.TrimSpace(parts[0]),
			Start:    strings.TrimSpace(parts[1]),
			Duration: strings.TrimSpace(parts[2]),
		})
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Proposal) validate() error {
	var missing []string
	if p.TaskName == "" {
		missing = append(missing, sectionName)
	}
	if p.Proposer == "" {
		missing = append(missing, "Proposer")
	}
	if p.ProposalDate == "" {
		missing = append(missing, "Proposal Date")
	}
	if p.TargetDate == "" {
		missing = append(missing, "Target Date")
	}
	if p.Purpose == "" {
		missing = append(missing, sectionPurpose)
	}
	if p.Scope == "" {
		missing = append(missing, sectionScope)
	}
	if p.Required == "" {
		missing = append(missing, sectionRequired)
	}
	if len(p.Schedule) == 0 {
		missing = append(missing, sectionSchedule)
	}
	if len(missing) > 0 {
		return fmt.Errorf("proposal is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Gantt renders the schedule as the mermaid chart embedded in the
// proposal issue body.
func (p *Proposal) Gantt() string {
	lines := []string{
		"gantt",
		"    title Task Implementation Schedule",
		"    dateFormat YYYY-MM-DD",
		"    section Development",
	}
	for _, entry := range p.Schedule {
		lines = append(lines, fmt.Sprintf("    %s :%s, %s", entry.Task, entry.Start, entry.Duration))
	}
	return strings.Join(lines, "\n")
}

func (s *Service) proposalBody(p *Proposal) string {
	optional := p.Optional
	if optional == "" {
		optional = "-"
	}

	var b strings.Builder
	b.WriteString("# Project Task Proposal\n\n")
	b.WriteString("## 1. Proposal Overview\n\n")
	fmt.Fprintf(&b, "**Project Name**: %s  \n", s.opts.ProjectName)
	fmt.Fprintf(&b, "**Task Name**: %s  \n", p.TaskName)
	fmt.Fprintf(&b, "**Proposer**: %s  \n", p.Proposer)
	fmt.Fprintf(&b, "**Proposal Date**: %s  \n", p.ProposalDate)
	fmt.Fprintf(&b, "**Target Date**: %s\n\n", p.TargetDate)
	b.WriteString("## 2. Task Summary\n\n")
	fmt.Fprintf(&b, "### 2.1 Purpose\n\n%s\n\n", p.Purpose)
	fmt.Fprintf(&b, "### 2.2 Scope\n\n%s\n\n", p.Scope)
	b.WriteString("## 3. Details\n\n")
	fmt.Fprintf(&b, "### Required Features\n\n%s\n\n", p.Required)
	fmt.Fprintf(&b, "### Optional Features\n\n%s\n\n", optional)
	b.WriteString("## 4. Approval Process\n\n")
	b.WriteString("Please add one of the following labels to approve this task:\n")
	fmt.Fprintf(&b, "- `%s`: Task is approved and ready to start.\n", LabelApproved)
	fmt.Fprintf(&b, "- `%s`: Task is rejected and needs revision.\n", LabelRejected)
	fmt.Fprintf(&b, "- `%s`: Task is on hold and needs further discussion.\n\n", LabelOnHold)
	b.WriteString("## 5. Schedule\n\n")
	fmt.Fprintf(&b, "```mermaid\n%s\n```\n", p.Gantt())
	return b.String()
}

// ProposedIssue records one issue opened by Propose.
type ProposedIssue struct {
	// Number is zero in dry runs.
	Number int
	Title  string
	File   string
}

// ProposeResult reports one proposal directory scan.
type ProposeResult struct {
	Created []ProposedIssue
	DryRun  bool
}

// Propose scans dir for proposal CSV files, opens one pending-review
// issue per file, and removes processed files. Malformed files are
// logged and skipped. The dir is taken relative to the repository
// root, both on disk and in the contents API.
func (s *Service) Propose(ctx context.Context, dir string) (*ProposeResult, error) {
	if dir == "" {
		dir = DefaultDir
	}
	res := &ProposeResult{DryRun: s.opts.DryRun}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[Tasks] No %s directory, nothing to propose", dir)
			return res, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		local := filepath.Join(dir, entry.Name())

		proposal, err := parseFile(local)
		if err != nil {
			log.Printf("[Tasks] Skipping %s: %v", local, err)
			continue
		}

		title := fmt.Sprintf("[%s] %s", s.opts.ProjectName, proposal.TaskName)
		if s.opts.DryRun {
			log.Printf("[Tasks] Dry run: would open %q from %s", title, local)
			res.Created = append(res.Created, ProposedIssue{Title: title, File: local})
			continue
		}

		issue, err := s.api.CreateIssue(ctx, githubapi.NewIssue{
			Title:  title,
			Body:   s.proposalBody(proposal),
			Labels: []string{LabelPending},
		})
		if err != nil {
			return res, fmt.Errorf("failed to open proposal %q: %w", title, err)
		}
		log.Printf("[Tasks] Opened proposal #%d: %s", issue.Number, issue.Title)
		res.Created = append(res.Created, ProposedIssue{Number: issue.Number, Title: issue.Title, File: local})

		s.removeProcessed(ctx, path.Join(dir, entry.Name()), local)
	}
	return res, nil
}

func parseFile(name string) (*Proposal, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseProposal(f)
}

// removeProcessed deletes a handled proposal file from the repository
// and the working tree. Failures only log; the issue already exists
// and a leftover file resurfaces on the next run.
func (s *Service) removeProcessed(ctx context.Context, repoPath, local string) {
	file, err := s.api.GetFile(ctx, repoPath)
	switch {
	case err != nil:
		log.Printf("[Tasks] Failed to look up %s: %v", repoPath, err)
	case file == nil:
		log.Printf("[Tasks] %s is not tracked, skipping repository delete", repoPath)
	default:
		message := fmt.Sprintf("chore: remove processed task proposal %s", path.Base(repoPath))
		if err := s.api.DeleteFile(ctx, repoPath, message, file.SHA); err != nil {
			log.Printf("[Tasks] Failed to delete %s: %v", repoPath, err)
		}
	}

	if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
		log.Printf("[Tasks] Failed to remove %s: %v", local, err)
	}
}
