package tasks

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/devlogkit/devlog/internal/githubapi"
)

const sampleCSV = `Proposer,octocat
Proposal Date,2026-08-20
Target Date,2026-09-15

[Task Name]
Webhook delivery retries

[Task Purpose]
Survive transient GitHub outages without losing events.

[Task Scope]
Webhook receiver and dispatch queue.

[Required Features]
- Exponential backoff
- Dead letter log

[Optional Features]
- Admin replay endpoint

[Schedule]
Design draft,2026-08-25,3d
Implementation,2026-08-28,5d
`

func TestParseProposal(t *testing.T) {
	p, err := ParseProposal(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseProposal returned error: %v", err)
	}

	if p.TaskName != "Webhook delivery retries" {
		t.Errorf("Expected task name %q, got %q", "Webhook delivery retries", p.TaskName)
	}
	if p.Proposer != "octocat" {
		t.Errorf("Expected proposer octocat, got %q", p.Proposer)
	}
	if p.ProposalDate != "2026-08-20" || p.TargetDate != "2026-09-15" {
		t.Errorf("Unexpected dates %q and %q", p.ProposalDate, p.TargetDate)
	}
	if p.Purpose != "Survive transient GitHub outages without losing events." {
		t.Errorf("Unexpected purpose %q", p.Purpose)
	}
	if p.Required != "- Exponential backoff\n- Dead letter log" {
		t.Errorf("Unexpected required features %q", p.Required)
	}
	if p.Optional != "- Admin replay endpoint" {
		t.Errorf("Unexpected optional features %q", p.Optional)
	}

	expected := []ScheduleEntry{
		{Task: "Design draft", Start: "2026-08-25", Duration: "3d"},
		{Task: "Implementation", Start: "2026-08-28", Duration: "5d"},
	}
	if !reflect.DeepEqual(p.Schedule, expected) {
		t.Errorf("Expected schedule %v, got %v", expected, p.Schedule)
	}
}

func TestParseProposal_MissingSections(t *testing.T) {
	csv := "Proposer,octocat\n\n[Task Name]\nSomething\n"
	_, err := ParseProposal(strings.NewReader(csv))
	if err == nil {
		t.Fatal("Expected a validation error, got nil")
	}
	for _, want := range []string{"Proposal Date", "[Task Purpose]", "[Schedule]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to name %s, got %v", want, err)
		}
	}
}

func TestParseProposal_OptionalFeaturesOmitted(t *testing.T) {
	csv := strings.Replace(sampleCSV, "[Optional Features]\n- Admin replay endpoint\n", "", 1)
	p, err := ParseProposal(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseProposal returned error: %v", err)
	}
	if p.Optional != "" {
		t.Errorf("Expected empty optional features, got %q", p.Optional)
	}
}

func TestParseProposal_MalformedSchedule(t *testing.T) {
	csv := strings.Replace(sampleCSV, "Design draft,2026-08-25,3d", "Design draft 3d", 1)
	if _, err := ParseProposal(strings.NewReader(csv)); err == nil {
		t.Fatal("Expected an error for a malformed schedule row, got nil")
	}
}

func TestGantt(t *testing.T) {
	p := &Proposal{Schedule: []ScheduleEntry{
		{Task: "Design draft", Start: "2026-08-25", Duration: "3d"},
		{Task: "Implementation", Start: "2026-08-28", Duration: "5d"},
	}}

	expected := "gantt\n" +
		"    title Task Implementation Schedule\n" +
		"    dateFormat YYYY-MM-DD\n" +
		"    section Development\n" +
		"    Design draft :2026-08-25, 3d\n" +
		"    Implementation :2026-08-28, 5d"
	if got := p.Gantt(); got != expected {
		t.Errorf("Expected gantt:\n%s\ngot:\n%s", expected, got)
	}
}

func TestSanitizeProjectName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "devlog", "devlog"},
		{"leading dots", ".dotfiles", "dotfiles"},
		{"special characters", "my.repo!", "my repo"},
		{"collapsed spaces", "..weird   name", "weird name"},
		{"hyphens kept", "side-project", "side-project"},
		{"unicode letters kept", "일일보고", "일일보고"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeProjectName(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPropose_CreatesIssuesAndCleansUp(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.MkdirAll(DefaultDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeProposalFile(t, "retry.csv", sampleCSV)
	writeProposalFile(t, "notes.txt", "not a proposal")
	writeProposalFile(t, "broken.csv", "just one line without sections\n")

	api := githubapi.NewMockAPI("octocat", "devlog")
	api.GetFileFunc = func(ctx context.Context, path string) (*githubapi.RepoFile, error) {
		if path != "TaskProposals/retry.csv" {
			t.Errorf("Unexpected GetFile path %q", path)
		}
		return &githubapi.RepoFile{Path: path, SHA: "abc123"}, nil
	}

	svc := NewService(api, Options{})
	res, err := svc.Propose(context.Background(), "")
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	if len(api.CreateIssueCalls) != 1 {
		t.Fatalf("Expected 1 created issue, got %d", len(api.CreateIssueCalls))
	}
	created := api.CreateIssueCalls[0]
	if created.Title != "[devlog] Webhook delivery retries" {
		t.Errorf("Unexpected proposal title %q", created.Title)
	}
	if !reflect.DeepEqual(created.Labels, []string{LabelPending}) {
		t.Errorf("Expected pending review label, got %v", created.Labels)
	}
	for _, want := range []string{
		"# Project Task Proposal",
		"**Project Name**: devlog",
		"**Proposer**: octocat",
		"### 2.1 Purpose",
		"- Exponential backoff",
		"### Optional Features\n\n- Admin replay endpoint",
		"- `✅ Approved`: Task is approved and ready to start.",
		"```mermaid\ngantt",
		"    Design draft :2026-08-25, 3d",
	} {
		if !strings.Contains(created.Body, want) {
			t.Errorf("Expected body to contain %q", want)
		}
	}

	if len(api.DeleteFileCalls) != 1 {
		t.Fatalf("Expected 1 repository delete, got %d", len(api.DeleteFileCalls))
	}
	deleted := api.DeleteFileCalls[0]
	if deleted.Path != "TaskProposals/retry.csv" || deleted.SHA != "abc123" {
		t.Errorf("Unexpected delete call %+v", deleted)
	}

	if _, err := os.Stat(filepath.Join(DefaultDir, "retry.csv")); !os.IsNotExist(err) {
		t.Errorf("Expected processed file to be removed, stat err %v", err)
	}
	if _, err := os.Stat(filepath.Join(DefaultDir, "broken.csv")); err != nil {
		t.Errorf("Expected malformed file to survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(DefaultDir, "notes.txt")); err != nil {
		t.Errorf("Expected non-CSV file to survive: %v", err)
	}

	if len(res.Created) != 1 || res.Created[0].Number != 101 {
		t.Errorf("Unexpected result %+v", res.Created)
	}
}

func TestPropose_DryRun(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.MkdirAll(DefaultDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeProposalFile(t, "retry.csv", sampleCSV)

	api := githubapi.NewMockAPI("octocat", "devlog")
	svc := NewService(api, Options{DryRun: true})
	res, err := svc.Propose(context.Background(), "")
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}

	if len(api.CreateIssueCalls) != 0 || len(api.DeleteFileCalls) != 0 {
		t.Errorf("Expected no writes in dry run, got %d creates and %d deletes",
			len(api.CreateIssueCalls), len(api.DeleteFileCalls))
	}
	if _, err := os.Stat(filepath.Join(DefaultDir, "retry.csv")); err != nil {
		t.Errorf("Expected proposal file to survive a dry run: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0].Number != 0 || res.Created[0].Title != "[devlog] Webhook delivery retries" {
		t.Errorf("Unexpected dry run result %+v", res.Created)
	}
}

func TestPropose_NoDirectory(t *testing.T) {
	t.Chdir(t.TempDir())

	api := githubapi.NewMockAPI("octocat", "devlog")
	svc := NewService(api, Options{})
	res, err := svc.Propose(context.Background(), "")
	if err != nil {
		t.Fatalf("Propose returned error: %v", err)
	}
	if len(res.Created) != 0 {
		t.Errorf("Expected no proposals, got %+v", res.Created)
	}
}

func writeProposalFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(DefaultDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
