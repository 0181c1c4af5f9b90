package server

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/devlogkit/devlog/internal/config"
	"github.com/devlogkit/devlog/internal/event"
	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
	"github.com/devlogkit/devlog/internal/slack"
	"github.com/devlogkit/devlog/internal/solvedac"
	"github.com/devlogkit/devlog/internal/tasks"
	"github.com/devlogkit/devlog/internal/todo"
)

// APIFactory builds a GitHub client for a repository. The server
// handles deliveries from any repository the App is installed on.
type APIFactory func(owner, repo string) (githubapi.API, error)

// AutomationRunner executes webhook jobs against the automation
// modules: push deliveries rebuild the daily report, issues events
// drive approvals and notifications, comment events resync report
// checkboxes.
type AutomationRunner struct {
	cfg      *config.Config
	newAPI   APIFactory
	notifier *slack.Notifier
	dayLocks *DayLock

	// solvedac feeds the report's problem-solving section when a
	// handle is configured. Tests point it at an httptest server.
	solvedac *solvedac.Client

	// now is stubbed in tests.
	now func() time.Time
}

// NewAutomationRunner wires a runner. notifier may be disabled.
func NewAutomationRunner(cfg *config.Config, factory APIFactory, notifier *slack.Notifier) *AutomationRunner {
	return &AutomationRunner{
		cfg:      cfg,
		newAPI:   factory,
		notifier: notifier,
		dayLocks: NewDayLock(),
		solvedac: solvedac.NewClient().WithRetry(cfg.MaxRetries, cfg.BaseDelay),
		now:      time.Now,
	}
}

// Run dispatches a job by event type.
func (r *AutomationRunner) Run(ctx context.Context, job *Job) error {
	switch job.Event {
	case event.NamePush:
		return r.runPush(ctx, job)
	case event.NameIssues:
		return r.runIssues(ctx, job)
	case event.NameIssueComment:
		return r.runIssueComment(ctx, job)
	default:
		return NonRetryable(fmt.Errorf("unsupported event %q", job.Event))
	}
}

func (r *AutomationRunner) runPush(ctx context.Context, job *Job) error {
	push, err := event.DecodePush(bytes.NewReader(job.Payload))
	if err != nil {
		return NonRetryable(fmt.Errorf("decode push payload: %w", err))
	}
	if event.SkipActor(push.Sender.Login) {
		log.Printf("[Runner] Skipping push from %s", push.Sender.Login)
		return nil
	}
	branch := event.BranchFromRef(push.Ref)
	if branch == "" {
		log.Printf("[Runner] Ignoring non-branch push %s", push.Ref)
		return nil
	}

	api, err := r.apiFor(push.Repository.FullName)
	if err != nil {
		return err
	}

	now := r.now().In(r.cfg.Location())
	lockKey := ReportKey(push.Repository.FullName, now)
	if !r.dayLocks.TryAcquire(lockKey) {
		// A concurrent delivery is already rebuilding this day.
		log.Printf("[Runner] Report for %s already rebuilding, dropping job %s", lockKey, job.ID)
		return nil
	}
	defer r.dayLocks.Release(lockKey)

	svc := report.NewService(api, r.reportOptions())
	result, err := svc.Generate(ctx, branch, now)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	if result.Issue == nil {
		return nil
	}

	if len(result.TodoSources) > 0 {
		todos := todo.NewService(api, todo.Options{DryRun: r.cfg.DryRun})
		if _, err := todos.Promote(ctx, result.Issue, result.TodoSources, now); err != nil {
			// Promotion rides the next push; the report is in place.
			log.Printf("[Runner] Todo promotion failed for %s: %v", push.Repository.FullName, err)
		}
	}

	if stale, err := svc.CloseStale(ctx, now); err != nil {
		log.Printf("[Runner] Stale report cleanup failed for %s: %v", push.Repository.FullName, err)
	} else if len(stale) > 0 {
		log.Printf("[Runner] Closed %d stale reports in %s", len(stale), push.Repository.FullName)
	}
	return nil
}

func (r *AutomationRunner) runIssues(ctx context.Context, job *Job) error {
	ev, err := event.DecodeIssues(bytes.NewReader(job.Payload))
	if err != nil {
		return NonRetryable(fmt.Errorf("decode issues payload: %w", err))
	}
	if event.SkipActor(ev.Sender.Login) || ev.Issue.PullRequest != nil {
		return nil
	}

	api, err := r.apiFor(ev.Repository.FullName)
	if err != nil {
		return err
	}

	issue := convertEventIssue(&ev.Issue)
	now := r.now().In(r.cfg.Location())

	switch ev.Action {
	case "labeled":
		if ev.Label != nil && isApprovalLabel(ev.Label.Name) {
			svc := tasks.NewService(api, tasks.Options{
				ProjectName: tasks.SanitizeProjectName(ev.Repository.Name),
				Location:    r.cfg.Location(),
				DryRun:      r.cfg.DryRun,
			})
			if _, err := svc.ProcessApproval(ctx, issue, now); err != nil {
				return fmt.Errorf("process approval: %w", err)
			}
		}
	case "closed":
		if issue.HasLabel(tasks.LabelApproved) {
			svc := tasks.NewService(api, tasks.Options{
				ProjectName: tasks.SanitizeProjectName(ev.Repository.Name),
				Location:    r.cfg.Location(),
				DryRun:      r.cfg.DryRun,
			})
			if _, err := svc.CompleteTask(ctx, issue); err != nil {
				return fmt.Errorf("complete task: %w", err)
			}
		}
		if issue.HasLabel(todo.PromotedLabel) {
			// Closing a promoted todo checks its report checkbox.
			todos := todo.NewService(api, todo.Options{DryRun: r.cfg.DryRun})
			if _, err := todos.SyncCheckboxes(ctx); err != nil {
				log.Printf("[Runner] Checkbox sync failed for %s: %v", ev.Repository.FullName, err)
			}
		}
	}

	if r.notifier != nil {
		notifyEv := slack.Event{
			Action: ev.Action,
			Title:  ev.Issue.Title,
			URL:    ev.Issue.HTMLURL,
			Author: ev.Issue.User.Login,
		}
		if ev.Label != nil {
			notifyEv.Label = ev.Label.Name
		}
		if err := r.notifier.Notify(ctx, notifyEv); err != nil {
			log.Printf("[Runner] Slack notification failed: %v", err)
		}
	}
	return nil
}

func (r *AutomationRunner) runIssueComment(ctx context.Context, job *Job) error {
	ev, err := event.DecodeIssueComment(bytes.NewReader(job.Payload))
	if err != nil {
		return NonRetryable(fmt.Errorf("decode issue_comment payload: %w", err))
	}
	if event.SkipActor(ev.Sender.Login) {
		return nil
	}
	if ev.Action != "created" && ev.Action != "edited" {
		return nil
	}
	// Only report issues carry checkboxes worth resyncing.
	if !report.IsReportTitle(ev.Issue.Title) {
		return nil
	}

	api, err := r.apiFor(ev.Repository.FullName)
	if err != nil {
		return err
	}

	todos := todo.NewService(api, todo.Options{DryRun: r.cfg.DryRun})
	if _, err := todos.SyncCheckboxes(ctx); err != nil {
		return fmt.Errorf("sync checkboxes: %w", err)
	}
	return nil
}

func (r *AutomationRunner) apiFor(fullName string) (githubapi.API, error) {
	owner, name, err := event.SplitRepo(fullName)
	if err != nil {
		return nil, NonRetryable(err)
	}
	api, err := r.newAPI(owner, name)
	if err != nil {
		return nil, fmt.Errorf("build client for %s: %w", fullName, err)
	}
	return api, nil
}

func (r *AutomationRunner) reportOptions() report.Options {
	opts := report.Options{
		Location:     r.cfg.Location(),
		KeepDays:     r.cfg.KeepDays,
		UpdateReadme: r.cfg.UpdateReadme,
		DryRun:       r.cfg.DryRun,
	}
	if r.cfg.ExcludedCommits != "" {
		if re, err := regexp.Compile(r.cfg.ExcludedCommits); err == nil {
			opts.ExcludedTypes = re
		} else {
			log.Printf("[Runner] Invalid EXCLUDED_COMMITS %q, using default: %v", r.cfg.ExcludedCommits, err)
		}
	}
	if handle := r.cfg.SolvedacHandle; handle != "" {
		opts.Sections = append(opts.Sections, func(ctx context.Context) (string, error) {
			user, err := r.solvedac.UserShow(ctx, handle)
			if err != nil {
				return "", err
			}
			return solvedac.Section(user), nil
		})
	}
	return opts
}

func isApprovalLabel(name string) bool {
	switch name {
	case tasks.LabelApproved, tasks.LabelRejected, tasks.LabelOnHold:
		return true
	}
	return false
}

// convertEventIssue maps a webhook issue payload onto the shared
// issue shape the services consume.
func convertEventIssue(in *event.Issue) *githubapi.Issue {
	out := &githubapi.Issue{
		Number: in.Number,
		NodeID: in.NodeID,
		Title:  in.Title,
		Body:   in.Body,
		State:  in.State,
		URL:    in.HTMLURL,
	}
	for _, l := range in.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	return out
}
