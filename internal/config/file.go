package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file picked up from the working
// directory when no path is given.
const DefaultFileName = "devlog.yaml"

// fileConfig mirrors the YAML layout. Pointer fields distinguish
// "absent" from zero values so the file only overrides what it names.
type fileConfig struct {
	GitHub struct {
		Token           *string `yaml:"token"`
		AppID           *string `yaml:"app_id"`
		AppPrivateKey   *string `yaml:"app_private_key"`
		MaxRetries      *int    `yaml:"max_retries"`
		BaseDelay       *string `yaml:"base_delay"`
		RateLimitBuffer *int    `yaml:"rate_limit_buffer"`
	} `yaml:"github"`

	Report struct {
		Timezone        *string `yaml:"timezone"`
		ExcludedCommits *string `yaml:"excluded_commits"`
		KeepDays        *int    `yaml:"keep_days"`
		UpdateReadme    *bool   `yaml:"update_readme"`
	} `yaml:"report"`

	Board struct {
		ProjectNumber *int `yaml:"project_number"`
	} `yaml:"board"`

	Slack struct {
		Token   *string `yaml:"token"`
		Channel *string `yaml:"channel"`
	} `yaml:"slack"`

	Solvedac struct {
		Handle *string `yaml:"handle"`
	} `yaml:"solvedac"`

	Server struct {
		Port              *int     `yaml:"port"`
		WebhookSecret     *string  `yaml:"webhook_secret"`
		Workers           *int     `yaml:"workers"`
		QueueSize         *int     `yaml:"queue_size"`
		MaxAttempts       *int     `yaml:"max_attempts"`
		RetryInitial      *string  `yaml:"retry_initial"`
		RetryMax          *string  `yaml:"retry_max"`
		BackoffMultiplier *float64 `yaml:"backoff_multiplier"`
	} `yaml:"server"`
}

// envExpansionRe matches ${VAR} and ${VAR:default} placeholders.
var envExpansionRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// expandEnv substitutes ${VAR} placeholders with environment values,
// falling back to the ${VAR:default} default when the variable is
// unset or empty.
func expandEnv(s string) string {
	return envExpansionRe.ReplaceAllStringFunc(s, func(match string) string {
		groups := envExpansionRe.FindStringSubmatch(match)
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		return groups[2]
	})
}

// applyFile overlays the YAML file at path onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Token, fc.GitHub.Token)
	setString(&cfg.AppID, fc.GitHub.AppID)
	if fc.GitHub.AppPrivateKey != nil {
		cfg.AppPrivateKey = normalizePrivateKey(*fc.GitHub.AppPrivateKey)
	}
	setInt(&cfg.MaxRetries, fc.GitHub.MaxRetries)
	if err := setDuration(&cfg.BaseDelay, fc.GitHub.BaseDelay, "github.base_delay"); err != nil {
		return err
	}
	setInt(&cfg.RateLimitBuffer, fc.GitHub.RateLimitBuffer)

	setString(&cfg.Timezone, fc.Report.Timezone)
	setString(&cfg.ExcludedCommits, fc.Report.ExcludedCommits)
	setInt(&cfg.KeepDays, fc.Report.KeepDays)
	setBool(&cfg.UpdateReadme, fc.Report.UpdateReadme)

	setInt(&cfg.ProjectNumber, fc.Board.ProjectNumber)

	setString(&cfg.SlackToken, fc.Slack.Token)
	setString(&cfg.SlackChannel, fc.Slack.Channel)

	setString(&cfg.SolvedacHandle, fc.Solvedac.Handle)

	setInt(&cfg.Port, fc.Server.Port)
	setString(&cfg.WebhookSecret, fc.Server.WebhookSecret)
	setInt(&cfg.Workers, fc.Server.Workers)
	setInt(&cfg.QueueSize, fc.Server.QueueSize)
	setInt(&cfg.MaxAttempts, fc.Server.MaxAttempts)
	if err := setDuration(&cfg.RetryInitial, fc.Server.RetryInitial, "server.retry_initial"); err != nil {
		return err
	}
	if err := setDuration(&cfg.RetryMax, fc.Server.RetryMax, "server.retry_max"); err != nil {
		return err
	}
	if fc.Server.BackoffMultiplier != nil {
		cfg.BackoffMultiplier = *fc.Server.BackoffMultiplier
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("config field %s: %w", field, err)
	}
	*dst = d
	return nil
}
