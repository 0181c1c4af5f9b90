package projects

import (
	"context"
	"fmt"
)

// ListItems returns every item on the board, following pagination.
func (m *Manager) ListItems(ctx context.Context, board *Board) ([]Item, error) {
	var all []Item
	var cursor *string

	for {
		var resp struct {
			Node struct {
				Items struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID      string `json:"id"`
						Content struct {
							Number int    `json:"number"`
							Title  string `json:"title"`
							State  string `json:"state"`
						} `json:"content"`
					} `json:"nodes"`
				} `json:"items"`
			} `json:"node"`
		}
		err := m.api.GraphQL(ctx, itemsQuery, map[string]interface{}{
			"projectId": board.ID,
			"cursor":    cursor,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("failed to list items of %q: %w", board.Title, err)
		}

		for _, node := range resp.Node.Items.Nodes {
			all = append(all, Item{
				ID:          node.ID,
				IssueNumber: node.Content.Number,
				Title:       node.Content.Title,
				State:       node.Content.State,
			})
		}

		if !resp.Node.Items.PageInfo.HasNextPage {
			break
		}
		cursor = &resp.Node.Items.PageInfo.EndCursor
	}

	return all, nil
}

// AddItem puts an issue on the board by its GraphQL node ID and
// returns the new item's ID. Adding an issue that is already on the
// board returns the existing item.
func (m *Manager) AddItem(ctx context.Context, board *Board, contentNodeID string) (string, error) {
	var resp struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	err := m.api.GraphQL(ctx, addItemMutation, map[string]interface{}{
		"projectId": board.ID,
		"contentId": contentNodeID,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to add item to %q: %w", board.Title, err)
	}
	if resp.AddProjectV2ItemByID.Item.ID == "" {
		return "", fmt.Errorf("addProjectV2ItemById returned no item")
	}
	return resp.AddProjectV2ItemByID.Item.ID, nil
}

// SetItemText writes a text field value on an item.
func (m *Manager) SetItemText(ctx context.Context, board *Board, itemID, fieldID, text string) error {
	err := m.api.GraphQL(ctx, setTextMutation, map[string]interface{}{
		"projectId": board.ID,
		"itemId":    itemID,
		"fieldId":   fieldID,
		"text":      text,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to set text value: %w", err)
	}
	return nil
}

// SetItemOption selects a single select option on an item.
func (m *Manager) SetItemOption(ctx context.Context, board *Board, itemID, fieldID, optionID string) error {
	err := m.api.GraphQL(ctx, setOptionMutation, map[string]interface{}{
		"projectId": board.ID,
		"itemId":    itemID,
		"fieldId":   fieldID,
		"optionId":  optionID,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to set option value: %w", err)
	}
	return nil
}

// GraphQL queries

const itemsQuery = `query Items($projectId: ID!, $cursor: String) {
  node(id: $projectId) {
    ... on ProjectV2 {
      items(first: 100, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          content {
            ... on Issue { number title state }
          }
        }
      }
    }
  }
}`

const addItemMutation = `mutation AddItem($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: { projectId: $projectId, contentId: $contentId }) {
    item { id }
  }
}`

const setTextMutation = `mutation SetText($projectId: ID!, $itemId: ID!, $fieldId: ID!, $text: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId
    itemId: $itemId
    fieldId: $fieldId
    value: { text: $text }
  }) {
    projectV2Item { id }
  }
}`

const setOptionMutation = `mutation SetOption($projectId: ID!, $itemId: ID!, $fieldId: ID!, $optionId: String!) {
  updateProjectV2ItemFieldValue(input: {
    projectId: $projectId
    itemId: $itemId
    fieldId: $fieldId
    value: { singleSelectOptionId: $optionId }
  }) {
    projectV2Item { id }
  }
}`
