package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlogkit/devlog/internal/event"
	"github.com/devlogkit/devlog/internal/report"
	"github.com/devlogkit/devlog/internal/solvedac"
	"github.com/devlogkit/devlog/internal/todo"
)

var (
	reportBranch string
	reportDate   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate or update today's Development Status Report",
	Long: "Reads the push event from GITHUB_EVENT_PATH (or --branch), gathers the day's commits, " +
		"builds the report issue, migrates unfinished todos from previous reports and promotes " +
		"(issue)-marked todos to standalone issues.",
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportBranch, "branch", "", "branch to report on (defaults to the push event ref)")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "report date as YYYY-MM-DD (defaults to today)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	branch := reportBranch
	if branch == "" {
		push, err := event.LoadPush(cfg.EventPath)
		if err != nil {
			return fmt.Errorf("no --branch given and no push event available: %w", err)
		}
		if event.SkipActor(push.Sender.Login) {
			log.Printf("[Report] Skipping push from %s", push.Sender.Login)
			return nil
		}
		branch = event.BranchFromRef(push.Ref)
		if branch == "" {
			log.Printf("[Report] Push ref %q is not a branch, nothing to do", push.Ref)
			return nil
		}
	}

	now := time.Now().In(cfg.Location())
	if reportDate != "" {
		day, err := time.ParseInLocation("2006-01-02", reportDate, cfg.Location())
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		// End of the requested day so the whole day's commits land in
		// the window.
		now = day.Add(23*time.Hour + 59*time.Minute)
	}

	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	svc := report.NewService(api, reportOptions(cfg))
	result, err := svc.Generate(cmd.Context(), branch, now)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	if result.Issue == nil {
		log.Printf("[Report] No reportable commits on %s", branch)
		return nil
	}

	verb := "updated"
	if result.Created {
		verb = "created"
	}
	log.Printf("[Report] %s report #%d (%d new commits, %d todos)", verb, result.Issue.Number, result.NewCommits, len(result.Todos))

	if stale, err := svc.CloseStale(cmd.Context(), now); err != nil {
		log.Printf("[Report] Stale report cleanup failed: %v", err)
	} else if len(stale) > 0 {
		log.Printf("[Report] Closed %d stale reports", len(stale))
	}

	if len(result.TodoSources) > 0 {
		todos := todo.NewService(api, todo.Options{DryRun: cfg.DryRun})
		promoted, err := todos.Promote(cmd.Context(), result.Issue, result.TodoSources, now)
		if err != nil {
			return fmt.Errorf("promote todos: %w", err)
		}
		if len(promoted.Promoted) > 0 {
			log.Printf("[Report] Promoted %d todos to issues", len(promoted.Promoted))
		}
	}
	return nil
}

// solvedacSection adapts the solved.ac client into a report section
// provider. Profile fetch failures skip the section rather than fail
// the report.
func solvedacSection(client *solvedac.Client, handle string) report.SectionFunc {
	return func(ctx context.Context) (string, error) {
		user, err := client.UserShow(ctx, handle)
		if err != nil {
			return "", err
		}
		return solvedac.Section(user), nil
	}
}
