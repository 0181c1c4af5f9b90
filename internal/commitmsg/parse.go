package commitmsg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// titleRe matches the first line of an envelope:
// [type] title or [type(scope)] title.
var titleRe = regexp.MustCompile(`^\[([^(\]]+)(?:\(([^)]+)\))?\]\s*(.+)$`)

// categoryRe matches an @Category marker line inside [Todo].
var categoryRe = regexp.MustCompile(`^@(.+?)\s*$`)

// itemRe matches a todo checklist line inside [Todo].
var itemRe = regexp.MustCompile(`^-\s+(.+)$`)

// issueMarker requests promotion of a todo item to a standalone issue.
const issueMarker = "(issue)"

type section int

const (
	sectionNone section = iota
	sectionBody
	sectionTodo
	sectionFooter
)

// Parse parses a full commit message into its envelope parts.
// The message must start with a valid [type] or [type(scope)] title
// line; [Body], [Todo] and [Footer] section headers are recognized
// case-insensitively on their own lines, each at most once.
func Parse(message string) (*Commit, error) {
	normalized := strings.ReplaceAll(message, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil, fmt.Errorf("empty commit message")
	}

	lines := strings.Split(normalized, "\n")

	m := titleRe.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return nil, fmt.Errorf("invalid commit format: missing [type] title line")
	}

	commitType := canonicalType(m[1])
	if !commitTypes[commitType] {
		return nil, fmt.Errorf("invalid commit type: %q", strings.TrimSpace(m[1]))
	}

	c := &Commit{
		Type:     commitType,
		Scope:    strings.TrimSpace(m[2]),
		Title:    strings.TrimSpace(m[3]),
		Breaking: strings.HasPrefix(commitType, "!"),
	}

	var bodyLines, footerLines []string
	seen := map[section]bool{}
	current := sectionNone

	// Tracks first-seen casing per lowercased category key.
	casing := map[string]string{}
	category := DefaultCategory

	for _, line := range lines[1:] {
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "[body]", "[todo]", "[footer]":
			next := sectionFor(strings.TrimSpace(line))
			if seen[next] {
				return nil, fmt.Errorf("duplicate section header: %s", strings.TrimSpace(line))
			}
			seen[next] = true
			current = next
			category = DefaultCategory
			continue
		}

		switch current {
		case sectionBody:
			bodyLines = append(bodyLines, line)
		case sectionFooter:
			footerLines = append(footerLines, line)
		case sectionTodo:
			trimmed := strings.TrimSpace(line)
			if cm := categoryRe.FindStringSubmatch(trimmed); cm != nil {
				name := strings.TrimSpace(cm[1])
				key := strings.ToLower(name)
				if first, ok := casing[key]; ok {
					category = first
				} else {
					casing[key] = name
					category = name
				}
				continue
			}
			if im := itemRe.FindStringSubmatch(trimmed); im != nil {
				text := strings.TrimSpace(im[1])
				wants := false
				if strings.HasPrefix(strings.ToLower(text), issueMarker) {
					wants = true
					text = strings.TrimSpace(text[len(issueMarker):])
				}
				if text == "" {
					continue
				}
				c.Todos = append(c.Todos, TodoItem{
					Category:   category,
					Text:       text,
					WantsIssue: wants,
				})
			}
		}
	}

	c.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
	c.Footer = strings.TrimSpace(strings.Join(footerLines, "\n"))
	return c, nil
}

func sectionFor(header string) section {
	switch strings.ToLower(header) {
	case "[body]":
		return sectionBody
	case "[todo]":
		return sectionTodo
	case "[footer]":
		return sectionFooter
	}
	return sectionNone
}

// refLineRe matches footer lines that reference issues.
var refLineRe = regexp.MustCompile(`(?i)^\s*(closes|fixes|resolves|related)\b`)

// refNumRe extracts #N tokens.
var refNumRe = regexp.MustCompile(`#(\d+)`)

// IssueRefs returns issue numbers referenced by footer lines starting
// with closes/fixes/resolves/related, in order of appearance without
// duplicates.
func IssueRefs(footer string) []int {
	var refs []int
	seen := map[int]bool{}
	for _, line := range strings.Split(footer, "\n") {
		if !refLineRe.MatchString(line) {
			continue
		}
		for _, m := range refNumRe.FindAllStringSubmatch(line, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 || seen[n] {
				continue
			}
			seen[n] = true
			refs = append(refs, n)
		}
	}
	return refs
}
