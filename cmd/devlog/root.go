// The devlog command runs the commit-driven bookkeeping automation as
// one-shot CI jobs: daily reports, todo promotion, board sync, task
// proposals and Slack notifications, one subcommand per trigger.
package main

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/devlogkit/devlog/internal/config"
	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
	"github.com/devlogkit/devlog/internal/solvedac"
)

var (
	configPath string
	dryRun     bool
	verbose    bool
	repoFlag   string
)

var rootCmd = &cobra.Command{
	Use:           "devlog",
	Short:         "Commit-driven development bookkeeping for GitHub",
	Long:          "devlog turns structured commit messages into daily report issues, tracked todos, a Projects v2 board and Slack notifications.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to devlog.yaml (defaults to DEVLOG_CONFIG or ./devlog.yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log mutations instead of performing them")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug detail")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "repository as owner/name (defaults to GITHUB_REPOSITORY)")
}

// loadConfig builds the run configuration from flags, environment and
// the optional config file.
func loadConfig() (*config.Config, error) {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if repoFlag != "" {
		owner, name, ok := strings.Cut(repoFlag, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("--repo must be owner/name, got %q", repoFlag)
		}
		cfg.Owner = owner
		cfg.Repo = name
	}
	cfg.DryRun = dryRun
	cfg.Verbose = verbose
	return cfg, nil
}

// newAPI builds the GitHub client for the configured repository.
func newAPI(cfg *config.Config) (githubapi.API, error) {
	if err := cfg.ValidateRepo(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateAuth(); err != nil {
		return nil, err
	}

	var auth githubapi.AuthProvider
	if cfg.Token != "" {
		auth = &githubapi.TokenAuth{Token: cfg.Token}
	} else {
		auth = &githubapi.AppAuth{
			AppID:      cfg.AppID,
			PrivateKey: cfg.AppPrivateKey,
			Repo:       cfg.FullName(),
		}
	}

	client := githubapi.NewClient(cfg.Owner, cfg.Repo, auth).
		WithRetry(cfg.MaxRetries, cfg.BaseDelay).
		WithBudget(githubapi.NewBudget(0, cfg.RateLimitBuffer))
	return client, nil
}

// reportOptions maps config onto report service options, wiring the
// solved.ac section when a handle is configured.
func reportOptions(cfg *config.Config) report.Options {
	opts := report.Options{
		Location:     cfg.Location(),
		KeepDays:     cfg.KeepDays,
		UpdateReadme: cfg.UpdateReadme,
		DryRun:       cfg.DryRun,
	}
	if cfg.ExcludedCommits != "" {
		re, err := regexp.Compile(cfg.ExcludedCommits)
		if err != nil {
			log.Printf("[Config] Invalid EXCLUDED_COMMITS %q, using default: %v", cfg.ExcludedCommits, err)
		} else {
			opts.ExcludedTypes = re
		}
	}
	if handle := cfg.SolvedacHandle; handle != "" {
		client := solvedac.NewClient().WithRetry(cfg.MaxRetries, cfg.BaseDelay)
		opts.Sections = append(opts.Sections, solvedacSection(client, handle))
	}
	return opts
}
