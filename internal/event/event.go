package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Event names as delivered by GitHub.
const (
	NamePush         = "push"
	NameIssues       = "issues"
	NameIssueComment = "issue_comment"
)

// skipActors never trigger automation; their commits and events are
// echoes of the automation itself or of dependency bots.
var skipActors = map[string]bool{
	"github-actions[bot]": true,
	"dependabot[bot]":     true,
	"renovate[bot]":       true,
}

// SkipActor reports whether events from this login are ignored.
func SkipActor(login string) bool {
	return skipActors[login]
}

// BranchFromRef extracts the branch name from a push ref such as
// "refs/heads/main". Returns "" for non-branch refs.
func BranchFromRef(ref string) string {
	const prefix = "refs/heads/"
	if !strings.HasPrefix(ref, prefix) {
		return ""
	}
	return strings.TrimPrefix(ref, prefix)
}

// SplitRepo splits "owner/name" into its parts.
func SplitRepo(fullName string) (owner, name string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/name)", fullName)
	}
	return parts[0], parts[1], nil
}

// LoadPush reads a push event payload from the file at path,
// typically $GITHUB_EVENT_PATH.
func LoadPush(path string) (*Push, error) {
	var p Push
	if err := loadJSON(path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadIssues reads an issues event payload from the file at path.
func LoadIssues(path string) (*Issues, error) {
	var e Issues
	if err := loadJSON(path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadIssueComment reads an issue_comment event payload from the file
// at path.
func LoadIssueComment(path string) (*IssueComment, error) {
	var e IssueComment
	if err := loadJSON(path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodePush decodes a push payload from a webhook request body.
func DecodePush(r io.Reader) (*Push, error) {
	var p Push
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode push payload: %w", err)
	}
	return &p, nil
}

// DecodeIssues decodes an issues payload from a webhook request body.
func DecodeIssues(r io.Reader) (*Issues, error) {
	var e Issues
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode issues payload: %w", err)
	}
	return &e, nil
}

// DecodeIssueComment decodes an issue_comment payload from a webhook
// request body.
func DecodeIssueComment(r io.Reader) (*IssueComment, error) {
	var e IssueComment
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode issue_comment payload: %w", err)
	}
	return &e, nil
}

func loadJSON(path string, out interface{}) error {
	if path == "" {
		return fmt.Errorf("event path is empty (is GITHUB_EVENT_PATH set?)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read event payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
