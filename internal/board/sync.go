package board

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/projects"
	"github.com/devlogkit/devlog/internal/todo"
)

// SyncResult reports one sync pass over the board.
type SyncResult struct {
	Board *projects.Board
	// Total is the number of issues considered.
	Total int
	// Added counts issues newly placed on the board.
	Added int
	// Updated counts existing items whose Category was rewritten.
	Updated int
	// Skipped counts issues left alone.
	Skipped int
	Failed  int
	DryRun  bool
}

// SyncTasks places every open issue except excluded ones (reports by
// default) on the board and keeps their Category field aligned with
// the category label.
func (s *Service) SyncTasks(ctx context.Context) (*SyncResult, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{State: "open"})
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}
	return s.place(ctx, s.filterTasks(issues), taskPace, true)
}

// SyncTodos places open promoted todo issues on the board. Issues
// already on the board are not touched.
func (s *Service) SyncTodos(ctx context.Context) (*SyncResult, error) {
	issues, err := s.api.ListIssues(ctx, githubapi.IssueListOptions{
		State:  "open",
		Labels: []string{todo.PromotedLabel},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list todo issues: %w", err)
	}
	return s.place(ctx, issues, todoPace, false)
}

func (s *Service) place(ctx context.Context, issues []*githubapi.Issue, pace time.Duration, updateExisting bool) (*SyncResult, error) {
	res := &SyncResult{Total: len(issues), DryRun: s.opts.DryRun}
	if len(issues) == 0 {
		log.Printf("[Board] No issues to sync onto %q", s.opts.BoardTitle)
		return res, nil
	}

	board, err := s.resolveBoard(ctx)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return res, nil
	}
	res.Board = board

	items, err := s.boards.ListItems(ctx, board)
	if err != nil {
		return nil, err
	}
	existing := map[int]projects.Item{}
	for _, item := range items {
		if item.IssueNumber != 0 {
			existing[item.IssueNumber] = item
		}
	}

	var categoryField *projects.Field
	if !s.opts.DryRun {
		if _, err := s.boards.EnsureSingleSelectField(ctx, board, "Status", statusOptions); err != nil {
			return nil, err
		}
		categoryField, err = s.boards.EnsureSingleSelectField(ctx, board, "Category", issueCategories(issues))
		if err != nil {
			return nil, err
		}
	}

	mutated := false
	for _, issue := range issues {
		category := issueCategory(issue)
		item, onBoard := existing[issue.Number]

		if onBoard && !updateExisting {
			res.Skipped++
			continue
		}

		if s.opts.DryRun {
			switch {
			case !onBoard:
				log.Printf("[Board] Dry run: would add #%d (%s, %s)", issue.Number, orNone(category), issuePriority(issue))
				res.Added++
			case category != "":
				log.Printf("[Board] Dry run: would set category %q on #%d", category, issue.Number)
				res.Updated++
			default:
				res.Skipped++
			}
			continue
		}

		if mutated {
			s.sleep(pace)
		}
		mutated = true

		if !onBoard {
			itemID, err := s.boards.AddItem(ctx, board, issue.NodeID)
			if err != nil {
				log.Printf("[Board] Failed to add #%d: %v", issue.Number, err)
				res.Failed++
				continue
			}
			item = projects.Item{ID: itemID, IssueNumber: issue.Number}
			res.Added++
			log.Printf("[Board] Added #%d to %q (%s, %s)", issue.Number, board.Title, orNone(category), issuePriority(issue))
		} else {
			res.Updated++
		}

		if category == "" || categoryField == nil {
			continue
		}
		optionID := categoryField.OptionID(category)
		if optionID == "" {
			log.Printf("[Board] Category field has no %q option for #%d", category, issue.Number)
			continue
		}
		if err := s.boards.SetItemOption(ctx, board, item.ID, categoryField.ID, optionID); err != nil {
			log.Printf("[Board] Failed to set category on #%d: %v", issue.Number, err)
			res.Failed++
		}
	}

	log.Printf("[Board] Synced %q: %d added, %d updated, %d skipped, %d failed",
		board.Title, res.Added, res.Updated, res.Skipped, res.Failed)
	return res, nil
}

// resolveBoard finds the repository board, creating it when absent. A
// dry run never creates; a missing board comes back nil without error.
func (s *Service) resolveBoard(ctx context.Context) (*projects.Board, error) {
	if s.opts.DryRun {
		board, err := s.boards.FindBoardByTitle(ctx, s.opts.BoardTitle)
		if err != nil {
			return nil, err
		}
		if board == nil {
			log.Printf("[Board] Dry run: project %q does not exist yet", s.opts.BoardTitle)
		}
		return board, nil
	}
	return s.boards.EnsureBoard(ctx, s.opts.BoardTitle)
}

func orNone(category string) string {
	if category == "" {
		return "none"
	}
	return category
}
