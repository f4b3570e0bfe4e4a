package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/config"
	"github.com/hpungsan/sieve/internal/errors"
	"github.com/hpungsan/sieve/internal/triage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 300
)

// CandidateReader is the read side of candidate.Store.
type CandidateReader interface {
	Get(id string) (candidate.Candidate, error)
	List(f candidate.ListFilter) []candidate.Candidate
	Counts() map[candidate.Status]int
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	load StoreLoader
	loc  *time.Location
	now  func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(load StoreLoader, cfg *config.Config) *Handlers {
	return &Handlers{load: load, loc: cfg.Location(), now: time.Now}
}

// ListRequest represents the arguments for candidate_list.
type ListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (r ListRequest) validate() error {
	switch candidate.Status(r.Status) {
	case "", candidate.StatusDrafted, candidate.StatusCreated, candidate.StatusSkipped:
	default:
		return errors.NewInvalidRequest("status must be one of: drafted, created, skipped")
	}
	if r.Limit < 0 {
		return errors.NewInvalidRequest("limit must not be negative")
	}
	return nil
}

// GetRequest represents the arguments for candidate_get.
type GetRequest struct {
	CandidateID string `json:"candidate_id"`
}

func (r GetRequest) validate() error {
	if strings.TrimSpace(r.CandidateID) == "" {
		return errors.NewInvalidRequest("candidate_id is required")
	}
	return nil
}

// ClassifyRequest represents the arguments for message_classify.
type ClassifyRequest struct {
	Text    string `json:"text"`
	IsVoice bool   `json:"is_voice,omitempty"`
	Now     string `json:"now,omitempty"`
}

func (r ClassifyRequest) validate() error {
	if r.Now == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, r.Now); err != nil {
		return errors.NewInvalidRequest("now must be RFC 3339")
	}
	return nil
}

// ListOutput is the candidate_list result.
type ListOutput struct {
	Candidates []candidate.Candidate `json:"candidates"`
	Count      int                   `json:"count"`
	Totals     map[string]int        `json:"totals"`
}

// ClassifyOutput is the message_classify result.
type ClassifyOutput struct {
	Important bool          `json:"important"`
	Reason    triage.Reason `json:"reason"`
	Content   string        `json:"content,omitempty"`
	DueAt     *time.Time    `json:"due_at,omitempty"`
}

// HandleList handles candidate_list.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	store, err := h.load(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items := store.List(candidate.ListFilter{Status: candidate.Status(input.Status), Limit: limit})
	totals := make(map[string]int)
	for status, n := range store.Counts() {
		totals[string(status)] = n
	}
	return successResult(ListOutput{Candidates: items, Count: len(items), Totals: totals})
}

// HandleGet handles candidate_get.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	store, err := h.load(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	c, err := store.Get(strings.TrimSpace(input.CandidateID))
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleClassify handles message_classify. Nothing is stored.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	now := h.now().In(h.loc)
	if input.Now != "" {
		now, _ = time.Parse(time.RFC3339, input.Now)
	}

	verdict := triage.Classify(input.Text, input.IsVoice)
	out := ClassifyOutput{Important: verdict.Important, Reason: verdict.Reason}
	if verdict.Important {
		draft := triage.Extract(input.Text, now)
		out.Content = draft.Content
		out.DueAt = draft.DueAt
	}
	return successResult(out)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var sErr *errors.SieveError
	if stderrors.As(err, &sErr) {
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
			"status":  sErr.Status,
		}
		if sErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
