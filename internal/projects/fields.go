package projects

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// optionColor is the color given to options this tool creates. The
// palette's light purple maps to the PURPLE variant of the API enum.
const optionColor = "PURPLE"

// Fields returns the board's fields, cached per board for the life of
// the manager.
func (m *Manager) Fields(ctx context.Context, board *Board) ([]Field, error) {
	key := m.cacheKey(board)

	m.mu.Lock()
	if cached, ok := m.fieldCache[key]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	fields, err := m.fetchFields(ctx, board)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.fieldCache[key] = fields
	m.mu.Unlock()
	return fields, nil
}

func (m *Manager) cacheKey(board *Board) string {
	return fmt.Sprintf("%s:%d", m.api.Owner(), board.Number)
}

func (m *Manager) invalidateFields(board *Board) {
	m.mu.Lock()
	delete(m.fieldCache, m.cacheKey(board))
	m.mu.Unlock()
}

func (m *Manager) fetchFields(ctx context.Context, board *Board) ([]Field, error) {
	var resp struct {
		Node struct {
			Fields struct {
				Nodes []Field `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}
	err := m.api.GraphQL(ctx, fieldsQuery, map[string]interface{}{"projectId": board.ID}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields of %q: %w", board.Title, err)
	}
	return resp.Node.Fields.Nodes, nil
}

// FindField returns the board field matching name, ignoring case, or
// nil when the board has no such field.
func (m *Manager) FindField(ctx context.Context, board *Board, name string) (*Field, error) {
	fields, err := m.Fields(ctx, board)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if strings.EqualFold(fields[i].Name, name) {
			return &fields[i], nil
		}
	}
	return nil, nil
}

// EnsureSingleSelectField returns the named single select field,
// creating it or extending its option list as needed. Existing options
// are never removed.
func (m *Manager) EnsureSingleSelectField(ctx context.Context, board *Board, name string, options []string) (*Field, error) {
	if len(options) == 0 {
		options = []string{"General"}
	}

	field, err := m.FindField(ctx, board, name)
	if err != nil {
		return nil, err
	}

	if field == nil {
		if err := m.createSingleSelectField(ctx, board, name, options); err != nil {
			return nil, err
		}
	} else {
		var missing []string
		for _, want := range options {
			if field.OptionID(want) == "" {
				missing = append(missing, want)
			}
		}
		if len(missing) == 0 {
			return field, nil
		}
		if err := m.appendFieldOptions(ctx, field, missing); err != nil {
			return nil, err
		}
	}

	// Re-read so the returned field carries the new option IDs.
	m.invalidateFields(board)
	field, err = m.FindField(ctx, board, name)
	if err != nil {
		return nil, err
	}
	if field == nil {
		return nil, fmt.Errorf("field %q missing after ensure on %q", name, board.Title)
	}
	return field, nil
}

func (m *Manager) createSingleSelectField(ctx context.Context, board *Board, name string, options []string) error {
	err := m.api.GraphQL(ctx, createFieldMutation, map[string]interface{}{
		"projectId": board.ID,
		"name":      name,
		"options":   optionInputs(options),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create field %q on %q: %w", name, board.Title, err)
	}
	log.Printf("[Projects] Created field %q on %q with %d options", name, board.Title, len(options))
	return nil
}

// appendFieldOptions rewrites the field's option list keeping every
// existing option; the update mutation replaces the whole list.
func (m *Manager) appendFieldOptions(ctx context.Context, field *Field, missing []string) error {
	names := make([]string, 0, len(field.Options)+len(missing))
	for _, opt := range field.Options {
		names = append(names, opt.Name)
	}
	names = append(names, missing...)

	err := m.api.GraphQL(ctx, updateFieldMutation, map[string]interface{}{
		"fieldId": field.ID,
		"options": optionInputs(names),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to add options %v to field %q: %w", missing, field.Name, err)
	}
	log.Printf("[Projects] Added options %v to field %q", missing, field.Name)
	return nil
}

func optionInputs(names []string) []map[string]interface{} {
	inputs := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		inputs = append(inputs, map[string]interface{}{
			"name":        name,
			"color":       optionColor,
			"description": "",
		})
	}
	return inputs
}

// GraphQL queries

const fieldsQuery = `query Fields($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      fields(first: 100) {
        nodes {
          ... on ProjectV2FieldCommon { id name dataType }
          ... on ProjectV2SingleSelectField { options { id name } }
        }
      }
    }
  }
}`

const createFieldMutation = `mutation CreateField($projectId: ID!, $name: String!, $options: [ProjectV2SingleSelectFieldOptionInput!]) {
  createProjectV2Field(input: {
    projectId: $projectId
    name: $name
    dataType: SINGLE_SELECT
    singleSelectOptions: $options
  }) {
    projectV2Field {
      ... on ProjectV2SingleSelectField { id name }
    }
  }
}`

const updateFieldMutation = `mutation UpdateField($fieldId: ID!, $options: [ProjectV2SingleSelectFieldOptionInput!]) {
  updateProjectV2Field(input: {
    fieldId: $fieldId
    singleSelectOptions: $options
  }) {
    projectV2Field {
      ... on ProjectV2SingleSelectField { id name }
    }
  }
}`
