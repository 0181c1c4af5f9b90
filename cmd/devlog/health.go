package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Verify configuration, credentials and rate-limit headroom",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	api, err := newAPI(cfg)
	if err != nil {
		return err
	}

	remaining, limit, err := api.RateLimit(cmd.Context())
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}

	log.Printf("[Health] Repository: %s", cfg.FullName())
	log.Printf("[Health] Rate limit: %d/%d remaining (buffer %d)", remaining, limit, cfg.RateLimitBuffer)
	if remaining <= cfg.RateLimitBuffer {
		return fmt.Errorf("rate limit exhausted: %d remaining, buffer %d", remaining, cfg.RateLimitBuffer)
	}

	log.Printf("[Health] OK")
	return nil
}
