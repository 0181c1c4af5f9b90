package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
	"github.com/devlogkit/devlog/internal/todo"
)

var todosCmd = &cobra.Command{
	Use:   "todos",
	Short: "Manage report todo items",
}

var todosPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote (issue)-marked todos from today's report to standalone issues",
	RunE:  runTodosPromote,
}

var todosSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile report checkboxes with their linked issues' state",
	RunE:  runTodosSync,
}

func init() {
	todosCmd.AddCommand(todosPromoteCmd)
	todosCmd.AddCommand(todosSyncCmd)
	rootCmd.AddCommand(todosCmd)
}

func runTodosPromote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	now := time.Now().In(cfg.Location())
	dsr, err := findTodayReport(cmd, api, now)
	if err != nil {
		return err
	}
	if dsr == nil {
		log.Printf("[Todos] No report for %s, nothing to promote", now.Format("2006-01-02"))
		return nil
	}

	svc := todo.NewService(api, todo.Options{DryRun: cfg.DryRun})
	// The standalone promotion pass has no commit envelopes at hand;
	// bodies carry the report reference only.
	result, err := svc.Promote(cmd.Context(), dsr, nil, now)
	if err != nil {
		return fmt.Errorf("promote todos: %w", err)
	}

	log.Printf("[Todos] Promoted %d todos from report #%d", len(result.Promoted), dsr.Number)
	for _, p := range result.Promoted {
		reused := ""
		if p.Reused {
			reused = " (existing)"
		}
		log.Printf("[Todos]   #%d %s%s", p.Number, p.Title, reused)
	}
	return nil
}

func runTodosSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	svc := todo.NewService(api, todo.Options{DryRun: cfg.DryRun})
	result, err := svc.SyncCheckboxes(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync checkboxes: %w", err)
	}

	log.Printf("[Todos] Examined %d reports, flipped %d checkboxes, rewrote %d bodies",
		result.Reports, result.Flipped, len(result.Updated))
	return nil
}

// findTodayReport locates the open report issue for the day containing
// now, or nil when none exists.
func findTodayReport(cmd *cobra.Command, api githubapi.API, now time.Time) (*githubapi.Issue, error) {
	issues, err := api.ListIssues(cmd.Context(), githubapi.IssueListOptions{
		State:  "open",
		Labels: []string{report.DefaultLabel},
	})
	if err != nil {
		return nil, fmt.Errorf("list report issues: %w", err)
	}

	date := now.Format("2006-01-02")
	for _, issue := range issues {
		if d, ok := report.TitleDate(issue.Title); ok && d == date {
			return issue, nil
		}
	}
	return nil, nil
}
