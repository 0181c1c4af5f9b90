package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/devlogkit/devlog/internal/commitmsg"
)

// Render produces the full issue body. The shapes here are
// load-bearing: later runs re-parse them with ParseBody to merge new
// commits and todos into an existing report.
func Render(b *Body) string {
	parts := []string{
		"# " + b.Title,
		centered("## 📊 Branch Summary"),
	}

	for _, section := range b.Branches {
		if len(section.Blocks) == 0 {
			continue
		}
		parts = append(parts, renderBranchSection(section))
	}

	parts = append(parts, centered("## 📝 Todo"))
	if todoSection := renderTodoSection(b.Todos); todoSection != "" {
		parts = append(parts, todoSection)
	}

	for _, extra := range b.Extras {
		if extra = strings.TrimSpace(extra); extra != "" {
			parts = append(parts, extra)
		}
	}

	return strings.Join(parts, "\n\n")
}

func centered(heading string) string {
	return fmt.Sprintf("<div align=\"center\">\n\n%s\n\n</div>", heading)
}

func renderBranchSection(s BranchSection) string {
	return fmt.Sprintf("<details>\n<summary><h3 style=\"display: inline;\">✨ %s</h3></summary>\n\n%s\n</details>",
		s.Branch, strings.Join(s.Blocks, "\n\n"))
}

// Render produces the commit's blockquoted details block.
func (c CommitBlock) Render() string {
	lines := []string{
		"> <details>",
		fmt.Sprintf("> <summary>💫 %s - %s</summary>", c.Time, c.Title),
		">",
		fmt.Sprintf("> Type: %s (%s)", c.Type, c.TypeDesc),
		"> Commit: " + c.commitRef(),
		"> Author: " + c.Author,
		">",
	}

	for _, line := range c.Body {
		lines = append(lines, "> • "+line)
	}

	if len(c.Related) > 0 {
		if len(c.Body) > 0 {
			lines = append(lines, ">")
		}
		lines = append(lines, "> Related Issues:")
		for _, n := range c.Related {
			lines = append(lines, fmt.Sprintf("> Related to #%d", n))
		}
	}

	lines = append(lines, "> </details>")
	return strings.Join(lines, "\n")
}

// commitRef renders the short SHA, linked when the commit URL is known.
func (c CommitBlock) commitRef() string {
	short := c.SHA
	if len(short) > 7 {
		short = short[:7]
	}
	if c.URL == "" {
		return short
	}
	return fmt.Sprintf("[%s](%s)", short, c.URL)
}

// renderTodoSection renders todos as per-category details blocks with
// completion counts and the ⚫ end-of-list sentinel. General leads and
// the remaining categories follow alphabetically so repeated runs
// produce stable bodies. Category identity is case-insensitive with
// first-seen casing kept for display; duplicate texts within a
// category collapse.
func renderTodoSection(todos []Todo) string {
	type group struct {
		name  string
		items []Todo
	}

	groups := map[string]*group{}
	var keys []string
	for _, t := range todos {
		name := commitmsg.NormalizeCategory(t.Category)
		if name == "" {
			name = commitmsg.DefaultCategory
		}
		key := strings.ToLower(name)
		g, ok := groups[key]
		if !ok {
			g = &group{name: name}
			groups[key] = g
			keys = append(keys, key)
		}

		duplicate := false
		for i, item := range g.items {
			if item.Text == t.Text {
				duplicate = true
				if t.Checked && !item.Checked {
					g.items[i].Checked = true
				}
				break
			}
		}
		if !duplicate {
			g.items = append(g.items, t)
		}
	}
	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)
	generalKey := strings.ToLower(commitmsg.DefaultCategory)
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == generalKey {
			ordered = append([]string{key}, ordered...)
			continue
		}
		ordered = append(ordered, key)
	}

	var sections []string
	for _, key := range ordered {
		g := groups[key]

		completed := 0
		var lines []string
		for _, item := range g.items {
			box := "[ ]"
			if item.Checked {
				box = "[x]"
				completed++
			}
			lines = append(lines, fmt.Sprintf("- %s %s", box, item.Text))
		}

		sections = append(sections, fmt.Sprintf(
			"<details>\n<summary><h3 style=\"display: inline;\">📑 %s (%d/%d)</h3></summary>\n\n%s\n\n⚫\n</details>",
			g.name, completed, len(g.items), strings.Join(lines, "\n")))
	}

	return strings.Join(sections, "\n\n")
}
