package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 300
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	src      Source
	renderer *Renderer
}

// HandleList handles GET /candidates, newest first with an optional status filter.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch candidate.Status(status) {
	case "", candidate.StatusDrafted, candidate.StatusCreated, candidate.StatusSkipped:
	default:
		h.renderer.renderError(w, r, errors.NewInvalidRequest("status must be one of: drafted, created, skipped"))
		return
	}

	limit := parseIntParam(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	store := h.src.Store()
	items := store.List(candidate.ListFilter{Status: candidate.Status(status), Limit: limit})

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"candidates": items,
			"count":      len(items),
		})
		return
	}

	title := "Candidates"
	if status != "" {
		title = strings.ToUpper(status[:1]) + status[1:] + " candidates"
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   title,
			Version: h.renderer.version,
			Nav:     status,
		},
		Items:     items,
		Status:    status,
		Limit:     limit,
		Totals:    totals(store.Counts()),
		Total:     store.Len(),
		Capacity:  store.Capacity(),
		LastFlush: h.src.LastFlush(),
		Dirty:     store.Dirty(),
		Loc:       h.src.Location(),
	})
}

// HandleDetail handles GET /candidates/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("candidate ID is required"))
		return
	}

	c, err := h.src.Store().Get(id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, c)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   c.Content,
			Version: h.renderer.version,
			Nav:     string(c.Status),
		},
		Candidate:    c,
		RenderedHTML: renderMarkdown(c.RawText),
		Loc:          h.src.Location(),
	})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	store := h.src.Store()
	out := map[string]any{
		"status":     "ok",
		"version":    h.renderer.version,
		"candidates": store.Len(),
		"dirty":      store.Dirty(),
	}
	if last := h.src.LastFlush(); !last.IsZero() {
		out["last_flush"] = last.UTC().Format(time.RFC3339)
	}
	renderJSON(w, http.StatusOK, out)
}

func totals(counts map[candidate.Status]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
