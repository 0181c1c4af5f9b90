// Package config loads the automation configuration from CLI flags,
// environment variables and an optional YAML file, in that precedence
// order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the devlog automation.
type Config struct {
	// Repository coordinates, from GITHUB_REPOSITORY ("owner/name").
	Owner string
	Repo  string

	// Token authentication. PAT wins over GITHUB_TOKEN when both are
	// set: the Actions token cannot create projects or push README
	// updates that retrigger workflows.
	Token string

	// GitHub App authentication, used by the webhook server.
	AppID         string
	AppPrivateKey string

	// Event context from the Actions runtime.
	EventName string
	EventPath string

	// Report settings.
	Timezone        string
	ExcludedCommits string
	KeepDays        int
	UpdateReadme    bool

	// Board settings.
	ProjectNumber int

	// Slack settings. Empty token or channel disables notifications.
	SlackToken   string
	SlackChannel string

	// solved.ac settings. Empty handle disables the profile section.
	SolvedacHandle string

	// GitHub client tuning.
	MaxRetries      int
	BaseDelay       time.Duration
	RateLimitBuffer int

	// Webhook server settings.
	Port              int
	WebhookSecret     string
	Workers           int
	QueueSize         int
	MaxAttempts       int
	RetryInitial      time.Duration
	RetryMax          time.Duration
	BackoffMultiplier float64

	// Run flags, set by the CLI after Load.
	DryRun  bool
	Verbose bool
}

// Load builds a Config from defaults, the optional YAML file and the
// environment. The file path comes from DEVLOG_CONFIG or path when
// non-empty; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("DEVLOG_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(DefaultFileName); err == nil {
			path = DefaultFileName
		}
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Timezone:          "UTC",
		ExcludedCommits:   `^(chore|docs|style):`,
		KeepDays:          7,
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		RateLimitBuffer:   100,
		Port:              8000,
		Workers:           4,
		QueueSize:         16,
		MaxAttempts:       3,
		RetryInitial:      15 * time.Second,
		RetryMax:          5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

func applyEnv(cfg *Config) {
	if repo := os.Getenv("GITHUB_REPOSITORY"); repo != "" {
		if owner, name, ok := strings.Cut(repo, "/"); ok {
			cfg.Owner = owner
			cfg.Repo = name
		}
	}

	// PAT over GITHUB_TOKEN, see the field comment.
	cfg.Token = getEnv("GITHUB_TOKEN", cfg.Token)
	cfg.Token = getEnv("PAT", cfg.Token)

	cfg.AppID = getEnv("GITHUB_APP_ID", cfg.AppID)
	if key := os.Getenv("GITHUB_APP_PRIVATE_KEY"); key != "" {
		cfg.AppPrivateKey = normalizePrivateKey(key)
	}

	cfg.EventName = getEnv("GITHUB_EVENT_NAME", cfg.EventName)
	cfg.EventPath = getEnv("GITHUB_EVENT_PATH", cfg.EventPath)

	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.ExcludedCommits = getEnv("EXCLUDED_COMMITS", cfg.ExcludedCommits)
	cfg.KeepDays = getEnvInt("REPORT_KEEP_DAYS", cfg.KeepDays)
	cfg.UpdateReadme = getEnvBool("UPDATE_README", cfg.UpdateReadme)

	cfg.ProjectNumber = getEnvInt("PROJECT_NUMBER", cfg.ProjectNumber)

	cfg.SlackToken = getEnv("SLACK_BOT_TOKEN", cfg.SlackToken)
	cfg.SlackChannel = getEnv("SLACK_CHANNEL_ID", cfg.SlackChannel)

	cfg.SolvedacHandle = getEnv("SOLVEDAC_HANDLE", cfg.SolvedacHandle)

	cfg.MaxRetries = getEnvInt("GITHUB_MAX_RETRIES", cfg.MaxRetries)
	cfg.BaseDelay = getEnvDuration("GITHUB_BASE_DELAY", cfg.BaseDelay)
	cfg.RateLimitBuffer = getEnvInt("GITHUB_RATE_LIMIT_BUFFER", cfg.RateLimitBuffer)

	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.WebhookSecret = getEnv("GITHUB_WEBHOOK_SECRET", cfg.WebhookSecret)
	cfg.Workers = getEnvInt("DISPATCHER_WORKERS", cfg.Workers)
	cfg.QueueSize = getEnvInt("DISPATCHER_QUEUE_SIZE", cfg.QueueSize)
	cfg.MaxAttempts = getEnvInt("DISPATCHER_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.RetryInitial = getEnvDuration("DISPATCHER_RETRY_INITIAL", cfg.RetryInitial)
	cfg.RetryMax = getEnvDuration("DISPATCHER_RETRY_MAX", cfg.RetryMax)
	cfg.BackoffMultiplier = getEnvFloat("DISPATCHER_BACKOFF_MULTIPLIER", cfg.BackoffMultiplier)
}

// normalizePrivateKey undoes the quoting and escaped newlines a PEM
// key picks up on its way through environment files.
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// validate checks the settings every entrypoint relies on.
func (c *Config) validate() error {
	if err := c.validateTimezone(); err != nil {
		return err
	}
	return c.validateTuning()
}

func (c *Config) validateTimezone() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid location: %w", c.Timezone, err)
	}
	return nil
}

func (c *Config) validateTuning() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("GITHUB_MAX_RETRIES must not be negative")
	}
	if c.RateLimitBuffer < 0 {
		return fmt.Errorf("GITHUB_RATE_LIMIT_BUFFER must not be negative")
	}
	if c.KeepDays <= 0 {
		return fmt.Errorf("REPORT_KEEP_DAYS must be greater than 0")
	}
	return nil
}

// ValidateRepo checks that the repository coordinates are known. The
// CLI calls this after applying the --repo flag.
func (c *Config) ValidateRepo() error {
	if c.Owner == "" || c.Repo == "" {
		return fmt.Errorf("GITHUB_REPOSITORY is required (owner/name)")
	}
	return nil
}

// ValidateAuth checks that some credential is available: a token, or
// an App ID with its private key.
func (c *Config) ValidateAuth() error {
	if c.Token != "" {
		return nil
	}
	if c.AppID != "" && c.AppPrivateKey != "" {
		return nil
	}
	if c.AppID != "" || c.AppPrivateKey != "" {
		return fmt.Errorf("GITHUB_APP_ID and GITHUB_APP_PRIVATE_KEY must be set together")
	}
	return fmt.Errorf("GITHUB_TOKEN (or PAT) is required")
}

// ValidateServer checks the additional settings the webhook server
// needs.
func (c *Config) ValidateServer() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("DISPATCHER_WORKERS must be greater than 0")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("DISPATCHER_QUEUE_SIZE must be greater than 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("DISPATCHER_MAX_ATTEMPTS must be greater than 0")
	}
	if c.RetryInitial <= 0 {
		return fmt.Errorf("DISPATCHER_RETRY_INITIAL must be greater than 0")
	}
	if c.RetryMax < c.RetryInitial {
		return fmt.Errorf("DISPATCHER_RETRY_MAX must be >= DISPATCHER_RETRY_INITIAL")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("DISPATCHER_BACKOFF_MULTIPLIER must be >= 1")
	}
	return nil
}

// Location resolves the configured timezone. Load has already
// validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FullName returns "owner/name".
func (c *Config) FullName() string {
	return c.Owner + "/" + c.Repo
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
