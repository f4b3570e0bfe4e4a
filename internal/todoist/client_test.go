package todoist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sieve/internal/errors"
)

func TestCreateTask(t *testing.T) {
	var got createTaskRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks", r.URL.Path)
		require.Equal(t, "Bearer td-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"8123","content":"x"}`))
	}))
	defer server.Close()

	client := NewClient("td-token", server.URL+"/")
	id, err := client.CreateTask(context.Background(), "Call Anna", "From: Team", "2024-01-02 10:00")
	require.NoError(t, err)
	require.Equal(t, "8123", id)
	require.Equal(t, "Call Anna", got.Content)
	require.Equal(t, "From: Team", got.Description)
	require.Equal(t, "2024-01-02 10:00", got.DueString)
	require.Equal(t, "en", got.DueLang)
}

func TestCreateTask_NoDue(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	_, err := NewClient("t", server.URL).CreateTask(context.Background(), "x", "", "")
	require.NoError(t, err)
	require.NotContains(t, raw, "due_string")
	require.NotContains(t, raw, "due_lang")
}

func TestCreateTask_ErrorBodyVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Forbidden: token revoked\n"))
	}))
	defer server.Close()

	_, err := NewClient("t", server.URL).CreateTask(context.Background(), "x", "", "")
	require.True(t, errors.Is(err, errors.ErrCollaboratorUnavailable))
	require.Contains(t, err.Error(), "HTTP 403: Forbidden: token revoked")
}

func TestCreateTask_MissingToken(t *testing.T) {
	_, err := NewClient("", "").CreateTask(context.Background(), "x", "", "")
	require.True(t, errors.Is(err, errors.ErrConfigurationMissing))
}
