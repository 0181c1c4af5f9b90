// Package commitmsg parses and renders the structured commit message
// envelope: a [type(scope)] title line followed by optional [Body],
// [Todo] and [Footer] sections. Todo items are grouped by @Category
// markers and may request issue promotion with a leading (issue) tag.
package commitmsg

import (
	"strings"
	"time"
)

// Commit is a parsed commit message envelope plus provenance filled in
// by callers that fetched the commit from the API.
type Commit struct {
	Type     string
	Scope    string
	Title    string
	Body     string
	Todos    []TodoItem
	Footer   string
	Breaking bool

	// Provenance, set by the caller when known.
	SHA        string
	Author     string
	AuthoredAt time.Time
	Branch     string
	URL        string
}

// TodoItem is a single checklist entry from a [Todo] section.
type TodoItem struct {
	// Category keeps the casing of the first @Category marker seen for it.
	Category string
	Text     string
	// WantsIssue is set when the item carried a leading (issue) marker.
	WantsIssue bool
}

// TypeInfo describes how a commit type is rendered and labeled.
type TypeInfo struct {
	Emoji       string
	Label       string
	Description string
}

// DefaultCategory is assigned to todo items that appear before any
// @Category marker.
const DefaultCategory = "General"

// SkipMarker excludes a commit from all automation when present
// anywhere in its message (matched case-insensitively).
const SkipMarker = "[skip-automation]"

// commitTypes is the set of accepted type tags. Types beginning with
// "!" canonicalize to uppercase and mark the commit as breaking;
// everything else canonicalizes to lowercase.
var commitTypes = map[string]bool{
	"feat":             true,
	"fix":              true,
	"docs":             true,
	"style":            true,
	"refactor":         true,
	"perf":             true,
	"test":             true,
	"chore":            true,
	"design":           true,
	"comment":          true,
	"rename":           true,
	"remove":           true,
	"debug":            true,
	"!BREAKING CHANGE": true,
	"!HOTFIX":          true,
}

var typeMeta = map[string]TypeInfo{
	"feat":             {Emoji: "✨", Label: "feature", Description: "New Feature"},
	"fix":              {Emoji: "🐛", Label: "bug", Description: "Bug Fix"},
	"docs":             {Emoji: "📝", Label: "documentation", Description: "Documentation"},
	"style":            {Emoji: "💄", Label: "style", Description: "Code Style"},
	"refactor":         {Emoji: "♻️", Label: "refactoring", Description: "Code Refactoring"},
	"perf":             {Emoji: "⚡️", Label: "performance", Description: "Performance"},
	"test":             {Emoji: "✅", Label: "test", Description: "Tests"},
	"chore":            {Emoji: "🔧", Label: "chore", Description: "Build/Config Update"},
	"design":           {Emoji: "🎨", Label: "design", Description: "UI/UX Design"},
	"comment":          {Emoji: "💬", Label: "comment", Description: "Comments"},
	"rename":           {Emoji: "🚚", Label: "rename", Description: "Rename/Move"},
	"remove":           {Emoji: "🔥", Label: "remove", Description: "Removal"},
	"debug":            {Emoji: "🐞", Label: "debug", Description: "Debugging"},
	"!BREAKING CHANGE": {Emoji: "💥", Label: "breaking-change", Description: "Breaking Change"},
	"!HOTFIX":          {Emoji: "🚑", Label: "hotfix", Description: "Hotfix"},
}

// otherType is used for commits whose type is not in the table, for
// callers that render arbitrary history rather than validate it.
var otherType = TypeInfo{Emoji: "🔍", Label: "other", Description: "Other"}

// TypeMeta returns rendering metadata for a commit type. Unknown types
// map to the "other" bucket rather than failing, since rendered history
// may predate the convention.
func TypeMeta(commitType string) TypeInfo {
	if info, ok := typeMeta[canonicalType(commitType)]; ok {
		return info
	}
	return otherType
}

// KnownType reports whether the type tag is part of the convention.
func KnownType(commitType string) bool {
	return commitTypes[canonicalType(commitType)]
}

// canonicalType normalizes a raw type tag: "!" types are uppercased,
// all others lowercased.
func canonicalType(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "!") {
		return strings.ToUpper(trimmed)
	}
	return strings.ToLower(trimmed)
}

// IsMerge reports whether the message is a merge commit message.
func IsMerge(message string) bool {
	return strings.HasPrefix(strings.TrimSpace(message), "Merge")
}

// ShouldSkip reports whether the message opts out of automation via the
// skip marker.
func ShouldSkip(message string) bool {
	return strings.Contains(strings.ToLower(message), SkipMarker)
}

// NormalizeCategory converts a category display name into its label
// form: inner whitespace runs collapse to single underscores.
func NormalizeCategory(category string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(category)), "_")
}
