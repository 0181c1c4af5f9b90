// Package slack posts issue lifecycle notifications to a Slack
// channel using Block Kit messages. A missing token or channel
// disables the notifier instead of failing the run.
package slack

import (
	"context"
	"fmt"
	"log"

	goslack "github.com/slack-go/slack"

	"github.com/devlogkit/devlog/internal/report"
	"github.com/devlogkit/devlog/internal/tasks"
)

// poster is the slice of the Slack client the notifier uses. The real
// client satisfies it; tests substitute a recorder.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...goslack.MsgOption) (string, string, error)
}

// Options configures a Notifier.
type Options struct {
	// Channel receives the messages.
	Channel string
	// DryRun logs the message instead of posting it.
	DryRun bool
}

// Notifier sends issue event notifications.
type Notifier struct {
	client  poster
	channel string
	dryRun  bool
}

// New creates a Notifier. An empty token or channel yields a disabled
// notifier whose Notify is a no-op.
func New(token string, opts Options) *Notifier {
	n := &Notifier{channel: opts.Channel, dryRun: opts.DryRun}
	if token != "" && opts.Channel != "" {
		n.client = goslack.New(token)
	}
	return n
}

// NewWithClient creates a Notifier around an existing client. Tests
// use it to capture messages.
func NewWithClient(client poster, opts Options) *Notifier {
	return &Notifier{client: client, channel: opts.Channel, dryRun: opts.DryRun}
}

// Enabled reports whether notifications will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.client != nil
}

// Event is the slice of an issues event the notifier renders.
type Event struct {
	// Action is the webhook action: opened, labeled, closed, ...
	Action string
	// Label is the label name on labeled actions.
	Label string
	// Title is the issue title.
	Title string
	// URL is the issue HTML URL.
	URL string
	// Author is the issue author login.
	Author string
}

// Notify routes an issue event to the right message shape: daily
// report issues get the daily-log announcement, everything else the
// task event message. Disabled notifiers return nil.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if !n.Enabled() {
		return nil
	}

	var blocks []goslack.Block
	if report.IsReportTitle(ev.Title) {
		if ev.Action != "opened" {
			// Only announce new daily logs; edits and closes are
			// bookkeeping noise.
			return nil
		}
		blocks = dailyLogBlocks(ev)
	} else {
		blocks = taskEventBlocks(ev)
	}

	if n.dryRun {
		log.Printf("[Slack] Dry run: would post %d blocks about %q to %s", len(blocks), ev.Title, n.channel)
		return nil
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

func dailyLogBlocks(ev Event) []goslack.Block {
	return []goslack.Block{
		headerBlock("📅 New daily development log"),
		sectionBlock(fmt.Sprintf("*%s*", ev.Title)),
		sectionBlock(fmt.Sprintf("👉 <%s|Open the log>", ev.URL)),
		goslack.NewDividerBlock(),
	}
}

func taskEventBlocks(ev Event) []goslack.Block {
	blocks := []goslack.Block{
		headerBlock(taskHeader(ev)),
		goslack.NewSectionBlock(nil, []*goslack.TextBlockObject{
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Title:*\n%s", ev.Title), false, false),
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Author:*\n%s", ev.Author), false, false),
		}, nil),
	}
	if ev.URL != "" {
		blocks = append(blocks, sectionBlock(fmt.Sprintf("👉 <%s|Open the issue>", ev.URL)))
	}
	return append(blocks, goslack.NewDividerBlock())
}

// taskHeader picks the header line for a task issue event.
func taskHeader(ev Event) string {
	switch ev.Action {
	case "opened":
		return "🆕 New task issue"
	case "labeled":
		switch ev.Label {
		case tasks.LabelApproved:
			return "✅ Task approved"
		case tasks.LabelRejected:
			return "❌ Task rejected"
		case tasks.LabelOnHold:
			return "⏸️ Task on hold"
		}
		return fmt.Sprintf("🏷️ Task labeled %s", ev.Label)
	case "closed":
		return "🎉 Task completed"
	default:
		return fmt.Sprintf("ℹ️ Task %s", ev.Action)
	}
}

func headerBlock(text string) goslack.Block {
	return goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, text, true, false))
}

func sectionBlock(markdown string) goslack.Block {
	return goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, markdown, false, false), nil, nil)
}
