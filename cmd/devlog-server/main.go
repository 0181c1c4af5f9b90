// The devlog-server command runs the webhook server: it receives
// GitHub deliveries, queues them on a per-repository dispatcher and
// executes the bookkeeping automation against the sending repository.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/devlogkit/devlog/internal/config"
	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/runstore"
	"github.com/devlogkit/devlog/internal/server"
	"github.com/devlogkit/devlog/internal/slack"
)

var (
	loadDotEnv         = godotenv.Load
	loadConfig         = config.Load
	defaultListenServe = http.ListenAndServe
)

func main() {
	if err := run(context.Background(), defaultListenServe); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(ctx context.Context, serve func(string, http.Handler) error) error {
	// .env is a dev convenience; absence is fine.
	_ = loadDotEnv()

	cfg, err := loadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}

	log.Printf("Starting devlog server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Timezone: %s", cfg.Timezone)
	log.Printf("Dispatcher workers: %d, queue size: %d, max attempts: %d", cfg.Workers, cfg.QueueSize, cfg.MaxAttempts)

	runs := runstore.NewStore(0)

	factory := newAPIFactory(cfg)

	notifier := slack.New(cfg.SlackToken, slack.Options{
		Channel: cfg.SlackChannel,
		DryRun:  cfg.DryRun,
	})
	if notifier.Enabled() {
		log.Printf("Slack notifications: %s", cfg.SlackChannel)
	} else {
		log.Printf("Slack notifications: disabled")
	}

	runner := server.NewAutomationRunner(cfg, factory, notifier)

	dispatcher := server.NewDispatcher(runner, server.DispatcherConfig{
		Workers:           cfg.Workers,
		QueueSize:         cfg.QueueSize,
		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    cfg.RetryInitial,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxBackoff:        cfg.RetryMax,
	}, runs)
	defer dispatcher.Shutdown(ctx)

	handler := server.NewHandler(cfg.WebhookSecret, dispatcher, runs)

	r := mux.NewRouter()
	handler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Server listening on %s", addr)
	log.Printf("Webhook endpoint: http://localhost%s/webhook", addr)
	log.Printf("Health check: http://localhost%s/health", addr)
	log.Printf("Run history: http://localhost%s/runs", addr)

	if err := serve(addr, r); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// newAPIFactory builds per-repository GitHub clients. With a personal
// token every repository shares it; with App credentials each
// repository gets its own installation-scoped client.
func newAPIFactory(cfg *config.Config) server.APIFactory {
	return func(owner, repo string) (githubapi.API, error) {
		var auth githubapi.AuthProvider
		if cfg.Token != "" {
			auth = &githubapi.TokenAuth{Token: cfg.Token}
		} else {
			auth = &githubapi.AppAuth{
				AppID:      cfg.AppID,
				PrivateKey: cfg.AppPrivateKey,
				Repo:       owner + "/" + repo,
			}
		}
		client := githubapi.NewClient(owner, repo, auth).
			WithRetry(cfg.MaxRetries, cfg.BaseDelay).
			WithBudget(githubapi.NewBudget(0, cfg.RateLimitBuffer))
		return client, nil
	}
}
