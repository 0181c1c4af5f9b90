// Package projects drives GitHub Projects v2 boards over GraphQL:
// board lookup and creation, custom fields, and item placement.
package projects

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/devlogkit/devlog/internal/githubapi"
)

// Board is a Projects v2 project.
type Board struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// Field is a project field. Options is populated for single select
// fields only.
type Field struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	DataType string        `json:"dataType"`
	Options  []FieldOption `json:"options"`
}

// FieldOption is one choice of a single select field.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OptionID returns the ID of the named option, or "" when absent.
func (f *Field) OptionID(name string) string {
	for _, opt := range f.Options {
		if opt.Name == name {
			return opt.ID
		}
	}
	return ""
}

// Item is a board item backed by an issue. Items whose content is not
// an issue carry a zero IssueNumber.
type Item struct {
	ID          string
	IssueNumber int
	Title       string
	State       string
}

// Manager runs Projects v2 operations for one repository owner.
type Manager struct {
	api githubapi.API

	// fieldCache holds board fields keyed by "owner:number".
	mu         sync.Mutex
	fieldCache map[string][]Field
}

// NewManager creates a manager on top of the API client.
func NewManager(api githubapi.API) *Manager {
	return &Manager{
		api:        api,
		fieldCache: make(map[string][]Field),
	}
}

// scopeHint is appended to project creation failures; Actions tokens
// cannot create Projects v2.
const scopeHint = "Projects v2 needs a classic PAT with the 'project' scope (https://github.com/settings/tokens/new); set it as the PAT secret"

// FindBoard locates a project by number, first on the user, then on
// the organization of the same login.
func (m *Manager) FindBoard(ctx context.Context, number int) (*Board, error) {
	owner := m.api.Owner()

	var userResp struct {
		User struct {
			ProjectV2 *Board `json:"projectV2"`
		} `json:"user"`
	}
	err := m.api.GraphQL(ctx, userProjectQuery, map[string]interface{}{
		"login":  owner,
		"number": number,
	}, &userResp)
	if err == nil && userResp.User.ProjectV2 != nil {
		return userResp.User.ProjectV2, nil
	}

	var orgResp struct {
		Organization struct {
			ProjectV2 *Board `json:"projectV2"`
		} `json:"organization"`
	}
	err = m.api.GraphQL(ctx, orgProjectQuery, map[string]interface{}{
		"login":  owner,
		"number": number,
	}, &orgResp)
	if err != nil {
		return nil, fmt.Errorf("project #%d not found for %s: %w", number, owner, err)
	}
	if orgResp.Organization.ProjectV2 == nil {
		return nil, fmt.Errorf("project #%d not found for %s", number, owner)
	}
	return orgResp.Organization.ProjectV2, nil
}

// FindBoardByTitle locates a project by exact title, checking user
// projects before organization projects.
func (m *Manager) FindBoardByTitle(ctx context.Context, title string) (*Board, error) {
	for _, query := range []string{userProjectsQuery, orgProjectsQuery} {
		boards, err := m.listBoards(ctx, query)
		if err != nil {
			continue
		}
		for i := range boards {
			if boards[i].Title == title {
				return &boards[i], nil
			}
		}
	}
	return nil, nil
}

func (m *Manager) listBoards(ctx context.Context, query string) ([]Board, error) {
	var all []Board
	var cursor *string

	for {
		var resp struct {
			User struct {
				ProjectsV2 projectPage `json:"projectsV2"`
			} `json:"user"`
			Organization struct {
				ProjectsV2 projectPage `json:"projectsV2"`
			} `json:"organization"`
		}
		err := m.api.GraphQL(ctx, query, map[string]interface{}{
			"login":  m.api.Owner(),
			"cursor": cursor,
		}, &resp)
		if err != nil {
			return nil, err
		}

		page := resp.User.ProjectsV2
		if len(page.Nodes) == 0 && !page.PageInfo.HasNextPage {
			page = resp.Organization.ProjectsV2
		}
		all = append(all, page.Nodes...)

		if !page.PageInfo.HasNextPage {
			break
		}
		cursor = &page.PageInfo.EndCursor
	}

	return all, nil
}

// CreateBoard creates a project owned by the repository owner. It
// tries the user first and falls back to the organization; failures of
// both surface the PAT scope guidance.
func (m *Manager) CreateBoard(ctx context.Context, title string) (*Board, error) {
	owner := m.api.Owner()

	ownerID, userErr := m.ownerNodeID(ctx, userIDQuery, owner)
	if userErr == nil {
		board, err := m.createBoardFor(ctx, ownerID, title)
		if err == nil {
			log.Printf("[Projects] Created user project %q (#%d)", board.Title, board.Number)
			return board, nil
		}
		userErr = err
	}

	ownerID, orgErr := m.ownerNodeID(ctx, orgIDQuery, owner)
	if orgErr == nil {
		board, err := m.createBoardFor(ctx, ownerID, title)
		if err == nil {
			log.Printf("[Projects] Created organization project %q (#%d)", board.Title, board.Number)
			return board, nil
		}
		orgErr = err
	}

	return nil, fmt.Errorf("failed to create project %q for %s (%v; %v): %s", title, owner, userErr, orgErr, scopeHint)
}

func (m *Manager) ownerNodeID(ctx context.Context, query, login string) (string, error) {
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Organization struct {
			ID string `json:"id"`
		} `json:"organization"`
	}
	if err := m.api.GraphQL(ctx, query, map[string]interface{}{"login": login}, &resp); err != nil {
		return "", err
	}
	if resp.User.ID != "" {
		return resp.User.ID, nil
	}
	if resp.Organization.ID != "" {
		return resp.Organization.ID, nil
	}
	return "", fmt.Errorf("no node ID for %s", login)
}

func (m *Manager) createBoardFor(ctx context.Context, ownerID, title string) (*Board, error) {
	var resp struct {
		CreateProjectV2 struct {
			ProjectV2 *Board `json:"projectV2"`
		} `json:"createProjectV2"`
	}
	err := m.api.GraphQL(ctx, createProjectMutation, map[string]interface{}{
		"ownerId": ownerID,
		"title":   title,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.CreateProjectV2.ProjectV2 == nil {
		return nil, fmt.Errorf("createProjectV2 returned no project")
	}
	return resp.CreateProjectV2.ProjectV2, nil
}

// EnsureBoard returns the project with the given title, creating it
// when absent.
func (m *Manager) EnsureBoard(ctx context.Context, title string) (*Board, error) {
	board, err := m.FindBoardByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if board != nil {
		log.Printf("[Projects] Found existing project %q (#%d)", board.Title, board.Number)
		return board, nil
	}
	return m.CreateBoard(ctx, title)
}

// BoardTitle derives the project title from a repository name:
// leading dots are stripped so dotfile repos get a readable title.
func BoardTitle(repoName string) string {
	return strings.TrimLeft(repoName, ".")
}

type projectPage struct {
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []Board `json:"nodes"`
}

// GraphQL queries

const userProjectQuery = `query UserProject($login: String!, $number: Int!) {
  user(login: $login) {
    projectV2(number: $number) { id number title url }
  }
}`

const orgProjectQuery = `query OrgProject($login: String!, $number: Int!) {
  organization(login: $login) {
    projectV2(number: $number) { id number title url }
  }
}`

const userProjectsQuery = `query UserProjects($login: String!, $cursor: String) {
  user(login: $login) {
    projectsV2(first: 100, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes { id number title url }
    }
  }
}`

const orgProjectsQuery = `query OrgProjects($login: String!, $cursor: String) {
  organization(login: $login) {
    projectsV2(first: 100, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      nodes { id number title url }
    }
  }
}`

const userIDQuery = `query UserID($login: String!) { user(login: $login) { id } }`

const orgIDQuery = `query OrgID($login: String!) { organization(login: $login) { id } }`

const createProjectMutation = `mutation CreateProject($ownerId: ID!, $title: String!) {
  createProjectV2(input: { ownerId: $ownerId, title: $title }) {
    projectV2 { id number title url }
  }
}`
