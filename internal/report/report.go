// Package report builds and maintains Development Status Report
// issues, one per repository per day. A report groups the day's commits
// into per-branch sections and carries a categorized todo checklist
// that migrates from day to day until items are checked off.
package report

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultLabel marks report issues.
	DefaultLabel = "DSR"

	// DefaultTitlePrefix leads report issue titles.
	DefaultTitlePrefix = "📊"

	// DefaultKeepDays bounds CloseStale when no window is configured.
	DefaultKeepDays = 7

	// titleMarker appears in every current report title.
	titleMarker = "Development Status Report"

	// legacyTitlePrefix is the title shape older generators used.
	// Still recognized so those issues migrate and close.
	legacyTitlePrefix = "📅 Daily Development Log"
)

// DefaultExcludedTypes drops housekeeping commits written in the plain
// "type: subject" format.
var DefaultExcludedTypes = regexp.MustCompile(`^(chore|docs|style):`)

// titleDateRe extracts the date from a report title.
var titleDateRe = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2})\)`)

// Title builds the report issue title for a date (YYYY-MM-DD) and a
// repository name.
func Title(prefix, date, repo string) string {
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	return fmt.Sprintf("%s %s (%s) - %s", prefix, titleMarker, date, DisplayName(repo))
}

// DisplayName strips the leading dots dotfile repositories carry.
func DisplayName(repo string) string {
	return strings.TrimLeft(repo, ".")
}

// BranchLabel returns the label recording that a branch has a section
// in the report.
func BranchLabel(branch string) string {
	return "branch:" + branch
}

// IsReportTitle reports whether an issue title belongs to a report, in
// the current or the legacy shape.
func IsReportTitle(title string) bool {
	return strings.Contains(title, titleMarker) || strings.HasPrefix(title, legacyTitlePrefix)
}

// TitleDate extracts the YYYY-MM-DD date from a report title.
func TitleDate(title string) (string, bool) {
	m := titleDateRe.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Todo is one checklist entry in a report's todo section.
type Todo struct {
	Category string
	Text     string
	Checked  bool
}

// CommitBlock is one commit rendered inside a branch section.
type CommitBlock struct {
	// Time is the authored time formatted HH:MM:SS in the report's
	// timezone.
	Time  string
	Title string
	Type  string
	// TypeDesc is the human description of the commit type.
	TypeDesc string
	SHA      string
	URL      string
	Author   string
	// Body holds the envelope body lines, leading list dashes
	// stripped.
	Body []string
	// Related lists issue numbers referenced by the commit footer.
	Related []int
}

// BranchSection groups the rendered commit blocks of one branch,
// oldest first.
type BranchSection struct {
	Branch string
	Blocks []string
}

// Body is the structured content of a report issue body.
type Body struct {
	Title    string
	Branches []BranchSection
	Todos    []Todo
	// Extras are opaque sections appended below the todo block, such
	// as the problem-solving profile. They are regenerated on every
	// run and never parsed back.
	Extras []string
}

// Branch returns the section for a branch, or nil when the report has
// none for it.
func (b *Body) Branch(name string) *BranchSection {
	for i := range b.Branches {
		if b.Branches[i].Branch == name {
			return &b.Branches[i]
		}
	}
	return nil
}
