package commitmsg

import (
	"fmt"
	"strings"
)

// Format renders a Commit back into its canonical envelope form.
// Parse(Format(c)) yields an equivalent Commit.
func Format(c *Commit) string {
	var b strings.Builder

	if c.Scope != "" {
		fmt.Fprintf(&b, "[%s(%s)] %s", c.Type, c.Scope, c.Title)
	} else {
		fmt.Fprintf(&b, "[%s] %s", c.Type, c.Title)
	}

	if c.Body != "" {
		b.WriteString("\n\n[Body]\n")
		b.WriteString(c.Body)
	}

	if len(c.Todos) > 0 {
		var todos strings.Builder
		writeTodos(&todos, c.Todos)
		b.WriteString("\n\n[Todo]\n")
		b.WriteString(strings.TrimRight(todos.String(), "\n"))
	}

	if c.Footer != "" {
		b.WriteString("\n\n[Footer]\n")
		b.WriteString(c.Footer)
	}

	return strings.TrimRight(b.String(), "\n")
}

// writeTodos renders items grouped by category in first-appearance
// order. General items lead without a marker; every other category gets
// an @Category line.
func writeTodos(b *strings.Builder, todos []TodoItem) {
	var order []string
	grouped := map[string][]TodoItem{}
	for _, item := range todos {
		key := strings.ToLower(item.Category)
		if _, ok := grouped[key]; !ok {
			order = append(order, item.Category)
		}
		grouped[key] = append(grouped[key], item)
	}

	// General leads when present.
	generalKey := strings.ToLower(DefaultCategory)
	if _, ok := grouped[generalKey]; ok {
		sorted := make([]string, 0, len(order))
		for _, name := range order {
			if strings.ToLower(name) == generalKey {
				sorted = append([]string{name}, sorted...)
			} else {
				sorted = append(sorted, name)
			}
		}
		order = sorted
	}

	for i, name := range order {
		if !strings.EqualFold(name, DefaultCategory) {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(b, "@%s\n", name)
		}
		for _, item := range grouped[strings.ToLower(name)] {
			if item.WantsIssue {
				fmt.Fprintf(b, "- (issue) %s\n", item.Text)
			} else {
				fmt.Fprintf(b, "- %s\n", item.Text)
			}
		}
	}
}
