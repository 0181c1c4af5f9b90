package board

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/projects"
)

// Stats summarizes the board against the repository's task issues.
type Stats struct {
	// Board is nil when the project does not exist yet.
	Board *projects.Board
	// Issues is the number of task issues considered.
	Issues int
	// Items is the number of items on the board.
	Items      int
	ByStatus   map[string]int
	ByPriority map[string]int
	ByCategory map[string]int
}

var priorityOrder = []string{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Stats classifies the repository's task issues the way the board
// does and counts them by status, priority and category.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "all"})
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	tasks := s.filterTasks(issues)

	st := &Stats{
		Issues:     len(tasks),
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
		ByCategory: map[string]int{},
	}

	board, err := s.boards.FindBoardByTitle(ctx, s.opts.BoardTitle)
	if err == nil && board != nil {
		st.Board = board
		if items, err := s.boards.ListItems(ctx, board); err == nil {
			st.Items = len(items)
		} else {
			log.Printf("[Board] Failed to list items of %q: %v", board.Title, err)
		}
	}

	for _, issue := range tasks {
		st.ByStatus[issueStatus(issue)]++
		st.ByPriority[issuePriority(issue)]++
		category := issueCategory(issue)
		if category == "" {
			category = "Uncategorized"
		}
		st.ByCategory[category]++
	}

	return st, nil
}

// String renders the statistics as a plain text table.
func (st *Stats) String() string {
	var b strings.Builder
	if st.Board != nil {
		fmt.Fprintf(&b, "Board: %s (#%d)\n", st.Board.Title, st.Board.Number)
	} else {
		b.WriteString("Board: not created yet\n")
	}
	fmt.Fprintf(&b, "Issues: %d  Items: %d\n", st.Issues, st.Items)
	writeBreakdown(&b, "Status", st.ByStatus, statusOptions)
	writeBreakdown(&b, "Priority", st.ByPriority, priorityOrder)
	writeBreakdown(&b, "Category", st.ByCategory, nil)
	return b.String()
}

// writeBreakdown prints one count section, known names in canonical
// order first, the rest alphabetically.
func writeBreakdown(b *strings.Builder, title string, counts map[string]int, order []string) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	seen := map[string]bool{}
	for _, name := range order {
		if n, ok := counts[name]; ok {
			fmt.Fprintf(b, "  %-14s %d\n", name, n)
			seen[name] = true
		}
	}
	var rest []string
	for name := range counts {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		fmt.Fprintf(b, "  %-14s %d\n", name, counts[name])
	}
}
