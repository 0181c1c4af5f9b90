package report

import (
	"regexp"
	"strings"

	"github.com/devlogkit/devlog/internal/commitmsg"
)

// blockTitleRe captures the title of a rendered commit block, without
// the time prefix.
var blockTitleRe = regexp.MustCompile(`>\s*<summary>💫\s*[\d:]+\s*-\s*(.*?)</summary>`)

// MergeTodos unions two todo lists by exact text. Entries from the
// first list keep their position and category; a duplicate in the
// second list only upgrades the checked state, never downgrades it.
// Category identity is case-insensitive with first-seen casing kept,
// so later "api" items join an existing "API" group.
func MergeTodos(first, second []Todo) []Todo {
	merged := make([]Todo, 0, len(first)+len(second))
	index := map[string]int{}
	casing := map[string]string{}

	add := func(t Todo) {
		name := commitmsg.NormalizeCategory(t.Category)
		if name == "" {
			name = commitmsg.DefaultCategory
		}
		key := strings.ToLower(name)
		if seen, ok := casing[key]; ok {
			t.Category = seen
		} else {
			casing[key] = name
			t.Category = name
		}

		if i, ok := index[t.Text]; ok {
			if t.Checked && !merged[i].Checked {
				merged[i].Checked = true
			}
			return
		}
		index[t.Text] = len(merged)
		merged = append(merged, t)
	}

	for _, t := range first {
		add(t)
	}
	for _, t := range second {
		add(t)
	}
	return merged
}

// UpsertTodos merges extra todos into a rendered body's todo region
// and reports whether the body changed. Every byte outside the region
// stays intact, so appended sections survive the splice. Bodies
// without a todo heading come back unchanged.
func UpsertTodos(body string, extra []Todo) (string, bool) {
	idx := strings.Index(body, todoHeading)
	if idx < 0 {
		return body, false
	}
	start := idx + len(todoHeading)
	if close := strings.Index(body[start:], "</div>"); close >= 0 {
		start += close + len("</div>")
	}
	// The region ends at whatever follows the checklist: the next
	// centered heading or a bare markdown heading, whichever comes
	// first. Appended sections carry no centered div.
	end := len(body)
	if next := strings.Index(body[start:], `<div align="center">`); next >= 0 {
		end = start + next
	}
	if next := strings.Index(body[start:end], "\n## "); next >= 0 {
		end = start + next
	}

	section := renderTodoSection(MergeTodos(parseTodos(body[start:end]), extra))
	if section == "" {
		return body, false
	}

	rest := strings.TrimLeft(body[end:], "\n")
	suffix := ""
	if rest != "" {
		suffix = "\n\n"
	}
	updated := body[:start] + "\n\n" + section + suffix + rest
	return updated, updated != body
}

// BlockTitles extracts the commit titles already rendered in the
// section.
func (s *BranchSection) BlockTitles() []string {
	var titles []string
	for _, block := range s.Blocks {
		for _, m := range blockTitleRe.FindAllStringSubmatch(block, -1) {
			titles = append(titles, strings.TrimSpace(m[1]))
		}
	}
	return titles
}

// HasBlock reports whether any branch section already carries a block
// whose title contains title.
func (b *Body) HasBlock(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	for i := range b.Branches {
		for _, existing := range b.Branches[i].BlockTitles() {
			if strings.Contains(existing, title) {
				return true
			}
		}
	}
	return false
}

// AppendBlock adds a rendered commit block to the branch's section,
// creating the section when the report has none for that branch.
func (b *Body) AppendBlock(branch, block string) {
	if s := b.Branch(branch); s != nil {
		s.Blocks = append(s.Blocks, block)
		return
	}
	b.Branches = append(b.Branches, BranchSection{Branch: branch, Blocks: []string{block}})
}
