package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
)

// defaultLabelColor is used for labels outside the palette.
const defaultLabelColor = "0969DA"

// labelPalette maps exact label names to their colors.
var labelPalette = map[string]string{
	"todo-item":          "0E8A16",
	"automated":          "7057FF",
	"DSR":                "D73A49",
	"daily-log":          "0E8A16",
	"type:bug":           "D73A49",
	"type:enhancement":   "A2EEEF",
	"type:testing":       "FBCA04",
	"type:documentation": "0052CC",
	"priority:low":       "0E8A16",
	"priority:medium":    "FBCA04",
	"priority:high":      "FF6900",
	"priority:critical":  "D73A49",
}

// LabelColor returns the palette color for a label. Prefixed label
// families (category:, branch:) share one color each.
func LabelColor(name string) string {
	if color, ok := labelPalette[name]; ok {
		return color
	}
	switch {
	case strings.HasPrefix(name, "category:"):
		return "5319E7"
	case strings.HasPrefix(name, "branch:"):
		return "C5DEF5"
	}
	return defaultLabelColor
}

// EnsureLabel creates the label with its palette color if the
// repository does not have it yet. Results are cached per client so a
// run touches each label at most once.
func (c *Client) EnsureLabel(ctx context.Context, name string) error {
	c.ensuredMu.Lock()
	if c.ensured == nil {
		c.ensured = map[string]bool{}
	}
	if c.ensured[name] {
		c.ensuredMu.Unlock()
		return nil
	}
	c.ensuredMu.Unlock()

	var exists bool
	err := c.retry(func() error {
		_, resp, rerr := c.rest.Issues.GetLabel(ctx, c.owner, c.repo, name)
		if rerr != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				exists = false
				return nil
			}
			return rerr
		}
		exists = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to check label %q: %w", name, err)
	}

	if !exists {
		label := &github.Label{
			Name:  github.String(name),
			Color: github.String(LabelColor(name)),
		}
		err = c.retry(func() error {
			_, resp, rerr := c.rest.Issues.CreateLabel(ctx, c.owner, c.repo, label)
			// Lost a race with a concurrent run; the label is there.
			if rerr != nil && resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
				return nil
			}
			return rerr
		})
		if err != nil {
			return fmt.Errorf("failed to create label %q: %w", name, err)
		}
	}

	c.ensuredMu.Lock()
	c.ensured[name] = true
	c.ensuredMu.Unlock()
	return nil
}

// ListLabels returns all label names defined on the repository.
func (c *Client) ListLabels(ctx context.Context) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}

	var names []string
	for {
		var (
			labels []*github.Label
			resp   *github.Response
		)
		err := c.retry(func() error {
			var rerr error
			labels, resp, rerr = c.rest.Issues.ListLabels(ctx, c.owner, c.repo, opts)
			return rerr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list labels: %w", err)
		}

		for _, label := range labels {
			names = append(names, label.GetName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}
