package report

import (
	"regexp"
	"strings"

	"github.com/devlogkit/devlog/internal/commitmsg"
)

// todoHeading starts the todo region of a report body.
const todoHeading = "## 📝 Todo"

// branchSummaryRe matches a branch section's summary line.
var branchSummaryRe = regexp.MustCompile(`<summary><h3[^>]*>✨\s*(.+?)\s*</h3></summary>`)

// categorySummaryRe matches a todo category header, tolerating the
// count-less and h3-less shapes older reports used.
var categorySummaryRe = regexp.MustCompile(`<summary>(?:<h3[^>]*>)?📑\s*([^()]+?)(?:\s*\(\d+/\d+\))?\s*(?:</h3>)?</summary>`)

// checkboxRe matches a todo checklist line.
var checkboxRe = regexp.MustCompile(`^-\s*\[([ xX])\]\s*(.*)$`)

// ParseBody reconstructs a report Body from an issue body. It is
// tolerant of older report shapes: title-cased branch names, category
// headers without completion counts and bodies whose centering divs
// were never closed.
func ParseBody(body string) *Body {
	parsed := &Body{}

	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	if first, _, _ := strings.Cut(normalized, "\n"); strings.HasPrefix(strings.TrimSpace(first), "# ") {
		parsed.Title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(first), "# "))
	}

	branchRegion, todoRegion := splitRegions(normalized)
	parsed.Branches = parseBranches(branchRegion)
	parsed.Todos = parseTodos(todoRegion)
	return parsed
}

// splitRegions cuts the body at the todo heading. The todo region ends
// at the next centered heading so appended extra sections stay out of
// the checklist scan.
func splitRegions(body string) (branches, todos string) {
	idx := strings.Index(body, todoHeading)
	if idx < 0 {
		return body, ""
	}
	branches = body[:idx]
	todos = body[idx+len(todoHeading):]
	if next := strings.Index(todos, `<div align="center">`); next >= 0 {
		todos = todos[:next]
	}
	return branches, todos
}

// parseBranches walks the branch region line by line. Commit blocks
// are blockquoted details blocks; their inner lines are kept verbatim
// so unknown line shapes survive a parse and re-render round trip.
func parseBranches(region string) []BranchSection {
	var sections []BranchSection
	var current *BranchSection
	var block []string
	inBlock := false

	flushBlock := func() {
		if inBlock && current != nil && len(block) > 0 {
			current.Blocks = append(current.Blocks, strings.Join(block, "\n"))
		}
		block = nil
		inBlock = false
	}

	for _, raw := range strings.Split(region, "\n") {
		line := strings.TrimSpace(raw)

		if m := branchSummaryRe.FindStringSubmatch(line); m != nil {
			flushBlock()
			if current != nil {
				sections = append(sections, *current)
			}
			current = &BranchSection{Branch: strings.TrimSpace(m[1])}
			continue
		}
		if current == nil || line == "" {
			continue
		}

		switch {
		case line == "</details>":
			flushBlock()
			sections = append(sections, *current)
			current = nil
		case strings.HasPrefix(line, "> <details>"):
			flushBlock()
			inBlock = true
			block = []string{line}
		case inBlock:
			block = append(block, line)
			if strings.HasPrefix(line, "> </details>") {
				flushBlock()
			}
		}
	}

	flushBlock()
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

// parseTodos scans the todo region for category headers and checklist
// lines. Lines that match neither, such as details tags and the ⚫
// sentinel, are skipped.
func parseTodos(region string) []Todo {
	var todos []Todo
	category := commitmsg.DefaultCategory

	for _, raw := range strings.Split(region, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.Contains(line, "⚫") {
			continue
		}

		if m := categorySummaryRe.FindStringSubmatch(line); m != nil {
			category = strings.TrimSpace(m[1])
			continue
		}
		if m := checkboxRe.FindStringSubmatch(line); m != nil {
			todos = append(todos, Todo{
				Category: category,
				Text:     strings.TrimSpace(m[2]),
				Checked:  strings.EqualFold(m[1], "x"),
			})
		}
	}
	return todos
}
