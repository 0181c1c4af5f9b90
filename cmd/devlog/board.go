package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/devlogkit/devlog/internal/board"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Mirror issues onto the repository's Projects v2 board",
}

var boardSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Place open task and todo issues on the board",
	RunE:  runBoardSync,
}

var boardStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print task statistics by status, priority and category",
	RunE:  runBoardStats,
}

func init() {
	boardCmd.AddCommand(boardSyncCmd)
	boardCmd.AddCommand(boardStatsCmd)
	rootCmd.AddCommand(boardCmd)
}

func runBoardSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	svc := board.NewService(api, board.Options{DryRun: cfg.DryRun})

	tasksResult, err := svc.SyncTasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync tasks: %w", err)
	}
	log.Printf("[Board] Tasks: %d considered, %d added, %d updated, %d skipped, %d failed",
		tasksResult.Total, tasksResult.Added, tasksResult.Updated, tasksResult.Skipped, tasksResult.Failed)

	todosResult, err := svc.SyncTodos(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync todos: %w", err)
	}
	log.Printf("[Board] Todos: %d considered, %d added, %d skipped, %d failed",
		todosResult.Total, todosResult.Added, todosResult.Skipped, todosResult.Failed)
	return nil
}

func runBoardStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	svc := board.NewService(api, board.Options{})
	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("board stats: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), stats.String())
	return nil
}
