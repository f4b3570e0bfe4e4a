// Package todoist creates tasks through the Todoist REST API.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/sieve/internal/errors"
)

const (
	// DefaultAPIRoot is the Todoist REST v2 endpoint.
	DefaultAPIRoot = "https://api.todoist.com/rest/v2"

	// DueLayout formats due_string values. Todoist parses it in the user's zone.
	DueLayout = "2006-01-02 15:04"

	defaultTimeout = 20 * time.Second
)

// Client is a minimal Todoist REST client.
type Client struct {
	token      string
	apiRoot    string
	httpClient *http.Client
}

// NewClient returns a client for token. An empty apiRoot uses DefaultAPIRoot.
func NewClient(token, apiRoot string) *Client {
	if strings.TrimSpace(apiRoot) == "" {
		apiRoot = DefaultAPIRoot
	}
	return &Client{
		token:      token,
		apiRoot:    strings.TrimRight(apiRoot, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type createTaskRequest struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	DueString   string `json:"due_string,omitempty"`
	DueLang     string `json:"due_lang,omitempty"`
}

type taskResponse struct {
	ID string `json:"id"`
}

// CreateTask creates a task and returns its id. dueString may be empty.
// A non-2xx response is returned as COLLABORATOR_UNAVAILABLE carrying the
// response body verbatim.
func (c *Client) CreateTask(ctx context.Context, content, description, dueString string) (string, error) {
	if c.token == "" {
		return "", errors.NewConfigurationMissing("TODOIST_API_TOKEN")
	}

	in := createTaskRequest{Content: content, Description: description, DueString: dueString}
	if dueString != "" {
		in.DueLang = "en"
	}
	body, err := json.Marshal(in)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiRoot+"/tasks", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewCollaboratorUnavailable("todoist", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.NewCollaboratorUnavailable("todoist",
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var out taskResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.NewCollaboratorUnavailable("todoist", fmt.Errorf("decode response: %w", err))
	}
	if out.ID == "" {
		return "", errors.NewCollaboratorUnavailable("todoist", fmt.Errorf("response has no task id: %s", strings.TrimSpace(string(respBody))))
	}
	return out.ID, nil
}
