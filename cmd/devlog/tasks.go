package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/devlogkit/devlog/internal/config"
	"github.com/devlogkit/devlog/internal/event"
	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/tasks"
)

var proposalsDir string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Run the task proposal and approval workflow",
}

var tasksProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Turn proposal CSV files into pending-review issues",
	RunE:  runTasksPropose,
}

var tasksApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Process the approval label from the current issues event",
	RunE:  runTasksApprove,
}

func init() {
	tasksProposeCmd.Flags().StringVar(&proposalsDir, "dir", "TaskProposals", "directory holding proposal CSV files")
	tasksCmd.AddCommand(tasksProposeCmd)
	tasksCmd.AddCommand(tasksApproveCmd)
	rootCmd.AddCommand(tasksCmd)
}

func newTaskService(cfg *config.Config, api githubapi.API) *tasks.Service {
	return tasks.NewService(api, tasks.Options{
		Location: cfg.Location(),
		DryRun:   cfg.DryRun,
	})
}

func runTasksPropose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	svc := newTaskService(cfg, api)
	result, err := svc.Propose(cmd.Context(), proposalsDir)
	if err != nil {
		return fmt.Errorf("process proposals: %w", err)
	}

	log.Printf("[Tasks] Created %d proposal issues", len(result.Created))
	for _, p := range result.Created {
		log.Printf("[Tasks]   #%d %s", p.Number, p.Title)
	}
	return nil
}

func runTasksApprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ev, err := event.LoadIssues(cfg.EventPath)
	if err != nil {
		return fmt.Errorf("load issues event: %w", err)
	}
	if event.SkipActor(ev.Sender.Login) {
		log.Printf("[Tasks] Skipping event from %s", ev.Sender.Login)
		return nil
	}

	api, err := newAPI(cfg)
	if err != nil {
		return err
	}
	svc := newTaskService(cfg, api)
	now := time.Now().In(cfg.Location())

	switch ev.Action {
	case "labeled":
		issue := eventIssue(&ev.Issue)
		result, err := svc.ProcessApproval(cmd.Context(), issue, now)
		if err != nil {
			return fmt.Errorf("process approval: %w", err)
		}
		if result.Action == "" {
			log.Printf("[Tasks] Issue #%d carries no approval label, nothing to do", issue.Number)
			return nil
		}
		log.Printf("[Tasks] Processed %s for #%d (progress report #%d)", result.Action, issue.Number, result.ReportNumber)
	case "closed":
		issue := eventIssue(&ev.Issue)
		result, err := svc.CompleteTask(cmd.Context(), issue)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		if result.Completed {
			log.Printf("[Tasks] Marked #%d completed in progress report #%d", issue.Number, result.ReportNumber)
		}
	default:
		log.Printf("[Tasks] Ignoring issues action %q", ev.Action)
	}
	return nil
}

// eventIssue maps a webhook issue payload onto the shared issue shape.
func eventIssue(in *event.Issue) *githubapi.Issue {
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
