package commitmsg

import (
	"reflect"
	"testing"
)

func TestFormat_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		commit *Commit
	}{
		{
			name:   "title only",
			commit: &Commit{Type: "feat", Title: "Add widget"},
		},
		{
			name:   "scope and body",
			commit: &Commit{Type: "fix", Scope: "db", Title: "Close leaked rows", Body: "Rows stayed open\nacross retries."},
		},
		{
			name: "todos across categories",
			commit: &Commit{
				Type:  "feat",
				Title: "Bootstrap reporting",
				Todos: []TodoItem{
					{Category: "General", Text: "draft layout"},
					{Category: "Infra", Text: "provision bucket", WantsIssue: true},
					{Category: "Infra", Text: "set retention"},
				},
			},
		},
		{
			name: "full envelope",
			commit: &Commit{
				Type:   "refactor",
				Scope:  "core",
				Title:  "Split parser",
				Body:   "Parser now lives alone.",
				Footer: "Closes #9",
				Todos: []TodoItem{
					{Category: "Cleanup", Text: "remove old shim"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered := Format(tt.commit)
			parsed, err := Parse(rendered)
			if err != nil {
				t.Fatalf("Parse(Format()) error = %v\nrendered:\n%s", err, rendered)
			}
			if parsed.Type != tt.commit.Type || parsed.Scope != tt.commit.Scope || parsed.Title != tt.commit.Title {
				t.Errorf("header mismatch: got [%s(%s)] %s", parsed.Type, parsed.Scope, parsed.Title)
			}
			if parsed.Body != tt.commit.Body {
				t.Errorf("Body = %q, want %q", parsed.Body, tt.commit.Body)
			}
			if parsed.Footer != tt.commit.Footer {
				t.Errorf("Footer = %q, want %q", parsed.Footer, tt.commit.Footer)
			}
			if len(tt.commit.Todos) > 0 && !reflect.DeepEqual(parsed.Todos, tt.commit.Todos) {
				t.Errorf("Todos = %+v, want %+v", parsed.Todos, tt.commit.Todos)
			}
		})
	}
}

func TestFormat_GeneralLeadsWithoutMarker(t *testing.T) {
	c := &Commit{
		Type:  "feat",
		Title: "Thing",
		Todos: []TodoItem{
			{Category: "Docs", Text: "write guide"},
			{Category: "General", Text: "hook into CI"},
		},
	}
	got := Format(c)
	want := "[feat] Thing\n\n[Todo]\n- hook into CI\n\n@Docs\n- write guide"
	if got != want {
		t.Errorf("Format() =\n%s\nwant:\n%s", got, want)
	}
}
