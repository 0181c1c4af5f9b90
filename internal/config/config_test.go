package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so host state cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"GITHUB_REPOSITORY", "GITHUB_TOKEN", "PAT",
		"GITHUB_APP_ID", "GITHUB_APP_PRIVATE_KEY",
		"GITHUB_EVENT_NAME", "GITHUB_EVENT_PATH",
		"TIMEZONE", "EXCLUDED_COMMITS", "REPORT_KEEP_DAYS", "UPDATE_README",
		"PROJECT_NUMBER", "SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID",
		"SOLVEDAC_HANDLE", "DEVLOG_CONFIG",
		"GITHUB_MAX_RETRIES", "GITHUB_BASE_DELAY", "GITHUB_RATE_LIMIT_BUFFER",
		"PORT", "GITHUB_WEBHOOK_SECRET",
		"DISPATCHER_WORKERS", "DISPATCHER_QUEUE_SIZE", "DISPATCHER_MAX_ATTEMPTS",
		"DISPATCHER_RETRY_INITIAL", "DISPATCHER_RETRY_MAX", "DISPATCHER_BACKOFF_MULTIPLIER",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Timezone != "UTC" {
					t.Errorf("Timezone = %s, want UTC", cfg.Timezone)
				}
				if cfg.KeepDays != 7 {
					t.Errorf("KeepDays = %d, want 7", cfg.KeepDays)
				}
				if cfg.RateLimitBuffer != 100 {
					t.Errorf("RateLimitBuffer = %d, want 100", cfg.RateLimitBuffer)
				}
				if cfg.Port != 8000 {
					t.Errorf("Port = %d, want 8000", cfg.Port)
				}
				if cfg.BackoffMultiplier != 2.0 {
					t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
				}
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"GITHUB_REPOSITORY": "octocat/.dotfiles",
				"GITHUB_TOKEN":      "ghp_actions",
				"TIMEZONE":          "Asia/Seoul",
				"PROJECT_NUMBER":    "3",
				"UPDATE_README":     "true",
				"GITHUB_BASE_DELAY": "2s",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Owner != "octocat" || cfg.Repo != ".dotfiles" {
					t.Errorf("repo = %s/%s, want octocat/.dotfiles", cfg.Owner, cfg.Repo)
				}
				if cfg.Timezone != "Asia/Seoul" {
					t.Errorf("Timezone = %s, want Asia/Seoul", cfg.Timezone)
				}
				if cfg.ProjectNumber != 3 {
					t.Errorf("ProjectNumber = %d, want 3", cfg.ProjectNumber)
				}
				if !cfg.UpdateReadme {
					t.Error("UpdateReadme = false, want true")
				}
				if cfg.BaseDelay != 2*time.Second {
					t.Errorf("BaseDelay = %v, want 2s", cfg.BaseDelay)
				}
			},
		},
		{
			name: "PAT wins over GITHUB_TOKEN",
			env: map[string]string{
				"GITHUB_TOKEN": "ghp_actions",
				"PAT":          "ghp_personal",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Token != "ghp_personal" {
					t.Errorf("Token = %s, want ghp_personal", cfg.Token)
				}
			},
		},
		{
			name:    "invalid timezone",
			env:     map[string]string{"TIMEZONE": "Mars/Olympus"},
			wantErr: "TIMEZONE",
		},
		{
			name:    "negative keep days",
			env:     map[string]string{"REPORT_KEEP_DAYS": "-1"},
			wantErr: "REPORT_KEEP_DAYS",
		},
		{
			name: "plain seconds duration",
			env:  map[string]string{"DISPATCHER_RETRY_INITIAL": "30"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.RetryInitial != 30*time.Second {
					t.Errorf("RetryInitial = %v, want 30s", cfg.RetryInitial)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() error = nil, want %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVLOG_SLACK_TOKEN", "xoxb-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "devlog.yaml")
	content := `
github:
  max_retries: 5
  base_delay: 500ms
report:
  timezone: Asia/Seoul
  keep_days: 14
slack:
  token: ${DEVLOG_SLACK_TOKEN}
  channel: ${DEVLOG_SLACK_CHANNEL:C0GENERAL}
server:
  workers: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 500*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 500ms", cfg.BaseDelay)
	}
	if cfg.Timezone != "Asia/Seoul" {
		t.Errorf("Timezone = %s, want Asia/Seoul", cfg.Timezone)
	}
	if cfg.KeepDays != 14 {
		t.Errorf("KeepDays = %d, want 14", cfg.KeepDays)
	}
	if cfg.SlackToken != "xoxb-from-env" {
		t.Errorf("SlackToken = %s, want the expanded env value", cfg.SlackToken)
	}
	if cfg.SlackChannel != "C0GENERAL" {
		t.Errorf("SlackChannel = %s, want the placeholder default", cfg.SlackChannel)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	// Untouched sections keep their defaults.
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize = %d, want 16", cfg.QueueSize)
	}
}

func TestLoadFileEnvBeatsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMEZONE", "Europe/Berlin")

	dir := t.TempDir()
	path := filepath.Join(dir, "devlog.yaml")
	if err := os.WriteFile(path, []byte("report:\n  timezone: Asia/Seoul\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %s, want the env value to win", cfg.Timezone)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("Load() with an explicit missing file should error")
	}
}

func TestValidateAuth(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"token", Config{Token: "ghp_x"}, false},
		{"app pair", Config{AppID: "1", AppPrivateKey: "key"}, false},
		{"app id alone", Config{AppID: "1"}, true},
		{"nothing", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateAuth()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuth() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	base := func() *Config {
		cfg := defaults()
		cfg.WebhookSecret = "secret"
		return cfg
	}

	if err := base().ValidateServer(); err != nil {
		t.Fatalf("ValidateServer() on defaults = %v", err)
	}

	cfg := base()
	cfg.WebhookSecret = ""
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "GITHUB_WEBHOOK_SECRET") {
		t.Errorf("missing secret error = %v", err)
	}

	cfg = base()
	cfg.RetryMax = cfg.RetryInitial / 2
	if err := cfg.ValidateServer(); err == nil {
		t.Error("RetryMax below RetryInitial should error")
	}
}

func TestNormalizePrivateKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "-----BEGIN KEY-----\nabc\n-----END KEY-----", "-----BEGIN KEY-----\nabc\n-----END KEY-----"},
		{"escaped newlines", `-----BEGIN KEY-----\nabc\n-----END KEY-----`, "-----BEGIN KEY-----\nabc\n-----END KEY-----"},
		{"double quoted", `"-----BEGIN KEY-----\nabc\n-----END KEY-----"`, "-----BEGIN KEY-----\nabc\n-----END KEY-----"},
		{"crlf", "-----BEGIN KEY-----\r\nabc\r\n-----END KEY-----", "-----BEGIN KEY-----\nabc\n-----END KEY-----"},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizePrivateKey(tt.input); got != tt.want {
				t.Errorf("normalizePrivateKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
