// The devlog-mcp command exposes the bookkeeping data over the Model
// Context Protocol so agent tooling can read daily reports and open
// todos for a repository.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	requiredEnv := []string{"GITHUB_TOKEN", "REPO_OWNER", "REPO_NAME"}
	for _, env := range requiredEnv {
		if os.Getenv(env) == "" {
			log.Fatalf("[MCP] Missing required environment variable: %s", env)
		}
	}

	log.Println("[MCP] Starting devlog MCP server v1.0.0")
	log.Printf("[MCP] Repository: %s/%s", os.Getenv("REPO_OWNER"), os.Getenv("REPO_NAME"))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "devlog-mcp",
		Version: "v1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_daily_report",
		Description: "Fetch the development status report issue for a date (defaults to today) with its todo completion counts",
	}, HandleGetDailyReport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_open_todos",
		Description: "List open promoted todo issues grouped by category",
	}, HandleListOpenTodos)

	log.Println("[MCP] Registered tools: get_daily_report, list_open_todos")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP] Server error: %v", err)
	}
	log.Println("[MCP] Server stopped gracefully")
}
