package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/devlogkit/devlog/internal/event"
	"github.com/devlogkit/devlog/internal/slack"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Post a Slack notification for the current issues event",
	RunE:  runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ev, err := event.LoadIssues(cfg.EventPath)
	if err != nil {
		return fmt.Errorf("load issues event: %w", err)
	}
	if event.SkipActor(ev.Sender.Login) {
		log.Printf("[Notify] Skipping event from %s", ev.Sender.Login)
		return nil
	}

	notifier := slack.New(cfg.SlackToken, slack.Options{
		Channel: cfg.SlackChannel,
		DryRun:  cfg.DryRun,
	})
	if !notifier.Enabled() {
		log.Printf("[Notify] Slack not configured (SLACK_BOT_TOKEN / SLACK_CHANNEL_ID), nothing to send")
		return nil
	}

	var label string
	if ev.Label != nil {
		label = ev.Label.Name
	}
	if err := notifier.Notify(cmd.Context(), slack.Event{
		Action: ev.Action,
		Label:  label,
		Title:  ev.Issue.Title,
		URL:    ev.Issue.HTMLURL,
		Author: ev.Issue.User.Login,
	}); err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	log.Printf("[Notify] Sent %s notification for #%d", ev.Action, ev.Issue.Number)
	return nil
}
