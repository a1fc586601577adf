// Package publish provides thin REST clients for the project-board and
// deployment services. Both are consumed through plain request/response
// contracts; nothing here knows what the services do internally.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClientTimeout is the default timeout for service requests.
const DefaultClientTimeout = 10 * time.Second

// Board is a project board created for a scaffold run.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// List is a column on a board.
type List struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
	Name    string `json:"name"`
}

// Card is a single item on a list.
type Card struct {
	ID          string `json:"id"`
	ListID      string `json:"listId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// BoardClient talks to the project-board service.
type BoardClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewBoardClient creates a board client for the given base URL.
func NewBoardClient(baseURL, apiKey string) *BoardClient {
	return &BoardClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
}

// CreateBoard creates a new board named after the project.
func (c *BoardClient) CreateBoard(ctx context.Context, name string) (*Board, error) {
	var board Board
	if err := c.post(ctx, "/boards", map[string]string{"name": name}, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// CreateList adds a column to a board.
func (c *BoardClient) CreateList(ctx context.Context, boardID, name string) (*List, error) {
	var list List
	payload := map[string]string{"boardId": boardID, "name": name}
	if err := c.post(ctx, "/lists", payload, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateCard adds a card to a list.
func (c *BoardClient) CreateCard(ctx context.Context, listID, title, description string) (*Card, error) {
	var card Card
	payload := map[string]string{"listId": listID, "title": title, "description": description}
	if err := c.post(ctx, "/cards", payload, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// PublishPlan creates a board for the project with a backlog list holding one
// card per feature. The partially created board is returned alongside the
// error when a later card fails.
func (c *BoardClient) PublishPlan(ctx context.Context, projectName string, features []string) (*Board, error) {
	board, err := c.CreateBoard(ctx, projectName)
	if err != nil {
		return nil, err
	}

	list, err := c.CreateList(ctx, board.ID, "Backlog")
	if err != nil {
		return board, err
	}

	for _, feature := range features {
		if _, err := c.CreateCard(ctx, list.ID, feature, ""); err != nil {
			return board, err
		}
	}
	return board, nil
}

func (c *BoardClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Service: "board", Message: "encoding request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Service: "board", Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Service: "board", Message: fmt.Sprintf("POST %s failed", path), Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Service: "board", Message: "reading response", Cause: err}
	}
	if resp.StatusCode >= 400 {
		return &Error{Service: "board", Message: fmt.Sprintf("POST %s returned %d: %s", path, resp.StatusCode, string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Service: "board", Message: "parsing response", Cause: err}
	}
	return nil
}
