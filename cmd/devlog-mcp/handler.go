package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devlogkit/devlog/internal/githubapi"
	"github.com/devlogkit/devlog/internal/report"
	"github.com/devlogkit/devlog/internal/todo"
)

// newAPI builds the GitHub client from the environment. Tests replace
// it with a mock factory.
var newAPI = func() (githubapi.API, error) {
	owner := os.Getenv("REPO_OWNER")
	repo := os.Getenv("REPO_NAME")
	token := os.Getenv("GITHUB_TOKEN")
	if owner == "" || repo == "" || token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN, REPO_OWNER and REPO_NAME are required")
	}
	return githubapi.NewClient(owner, repo, &githubapi.TokenAuth{Token: token}), nil
}

// location resolves the reporting timezone from TIMEZONE, UTC when
// unset or invalid.
func location() *time.Location {
	name := os.Getenv("TIMEZONE")
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[MCP] Invalid TIMEZONE %q, using UTC", name)
		return time.UTC
	}
	return loc
}

// GetDailyReportParams defines the get_daily_report tool input.
type GetDailyReportParams struct {
	Date string `json:"date,omitempty" jsonschema:"Report date as YYYY-MM-DD, today when omitted"`
}

// dailyReportResult is the tool's JSON payload.
type dailyReportResult struct {
	Found      bool   `json:"found"`
	Date       string `json:"date"`
	Number     int    `json:"number,omitempty"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
	State      string `json:"state,omitempty"`
	TodosTotal int    `json:"todos_total"`
	TodosDone  int    `json:"todos_done"`
}

// HandleGetDailyReport resolves the report issue for the requested
// date and summarises its todo checklist.
func HandleGetDailyReport(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params GetDailyReportParams,
) (*mcp.CallToolResult, any, error) {
	date := params.Date
	if date == "" {
		date = time.Now().In(location()).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, nil, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}

	api, err := newAPI()
	if err != nil {
		return nil, nil, err
	}

	issues, err := api.ListIssues(ctx, githubapi.IssueListOptions{
		State:  "all",
		Labels: []string{report.DefaultLabel},
	})
	if err != nil {
		return errorResult(fmt.Errorf("list report issues: %w", err)), nil, nil
	}

	result := dailyReportResult{Date: date}
	for _, issue := range issues {
		d, ok := report.TitleDate(issue.Title)
		if !ok || d != date {
			continue
		}
		result.Found = true
		result.Number = issue.Number
		result.Title = issue.Title
		result.URL = issue.URL
		result.State = issue.State
		for _, t := range report.ParseBody(issue.Body).Todos {
			result.TodosTotal++
			if t.Checked {
				result.TodosDone++
			}
		}
		break
	}

	return jsonResult(result), nil, nil
}

// ListOpenTodosParams defines the list_open_todos tool input.
type ListOpenTodosParams struct {
	Category string `json:"category,omitempty" jsonschema:"Only todos in this category, all when omitted"`
}

// openTodo is one open todo issue in the tool's JSON payload.
type openTodo struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

// HandleListOpenTodos lists open promoted todo issues grouped by their
// category label.
func HandleListOpenTodos(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params ListOpenTodosParams,
) (*mcp.CallToolResult, any, error) {
	api, err := newAPI()
	if err != nil {
		return nil, nil, err
	}

	labels := []string{todo.PromotedLabel}
	if params.Category != "" {
		labels = append(labels, "category:"+strings.ToLower(params.Category))
	}
	issues, err := api.ListIssues(ctx, githubapi.IssueListOptions{
		State:  "open",
		Labels: labels,
	})
	if err != nil {
		return errorResult(fmt.Errorf("list todo issues: %w", err)), nil, nil
	}

	grouped := make(map[string][]openTodo)
	for _, issue := range issues {
		grouped[issueCategory(issue)] = append(grouped[issueCategory(issue)], openTodo{
			Number: issue.Number,
			Title:  issue.Title,
			URL:    issue.URL,
		})
	}

	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	type categoryGroup struct {
		Category string     `json:"category"`
		Todos    []openTodo `json:"todos"`
	}
	result := struct {
		Total      int             `json:"total"`
		Categories []categoryGroup `json:"categories"`
	}{Total: len(issues)}
	for _, c := range categories {
		result.Categories = append(result.Categories, categoryGroup{Category: c, Todos: grouped[c]})
	}

	return jsonResult(result), nil, nil
}

// issueCategory extracts the category from an issue's labels, falling
// back to "general".
func issueCategory(issue *githubapi.Issue) string {
	for _, l := range issue.Labels {
		if name, ok := strings.CutPrefix(l, "category:"); ok {
			return name
		}
	}
	return "general"
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	log.Printf("[MCP] %v", err)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
		IsError: true,
	}
}
