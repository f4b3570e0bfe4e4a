package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/sieve/internal/errors"
)

func TestGetUpdates(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/bottoken/getUpdates"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{
					"update_id": 101,
					"message": map[string]any{
						"message_id": 77,
						"caption":    "invoice attached",
						"from":       map[string]any{"id": 11, "first_name": "Anna", "last_name": "K"},
						"chat":       map[string]any{"id": -100, "type": "supergroup", "title": "Team"},
					},
				},
				{
					"update_id": 102,
					"callback_query": map[string]any{
						"id":   "cb1",
						"from": map[string]any{"id": 5},
						"data": "skip:abc",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{Token: "token", APIRoot: server.URL, PollTimeoutSeconds: 1})
	updates, err := client.GetUpdates(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	require.EqualValues(t, 100, payload["offset"])
	require.EqualValues(t, 1, payload["timeout"])
	require.Equal(t, []any{"message", "callback_query"}, payload["allowed_updates"])

	msg := updates[0].Message
	require.NotNil(t, msg)
	require.Equal(t, "invoice attached", msg.Body())
	require.Equal(t, "Anna K", msg.From.DisplayName())
	require.Equal(t, "Team", msg.Chat.DisplayTitle())

	require.NotNil(t, updates[1].CallbackQuery)
	require.Equal(t, "skip:abc", updates[1].CallbackQuery.Data)
}

func TestSendMessageWithButtons(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/sendMessage"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":9,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer server.Close()

	client := NewClient(Config{Token: "token", APIRoot: server.URL})
	msg, err := client.SendMessage(context.Background(), 42, "hello", [][]Button{{
		{Text: "Confirm", CallbackData: "confirm:x"},
		{Text: "Skip", CallbackData: "skip:x"},
	}})
	require.NoError(t, err)
	require.EqualValues(t, 9, msg.MessageID)

	require.EqualValues(t, 42, payload["chat_id"])
	markup := payload["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	require.Len(t, rows, 1)
	first := rows[0].([]any)[0].(map[string]any)
	require.Equal(t, "confirm:x", first["callback_data"])
}

func TestAPIErrorIsCollaboratorUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	client := NewClient(Config{Token: "secret-token", APIRoot: server.URL})
	err := client.AnswerCallbackQuery(context.Background(), "cb", "ok")
	require.True(t, errors.Is(err, errors.ErrCollaboratorUnavailable))
	require.Contains(t, err.Error(), "chat not found")
	require.NotContains(t, err.Error(), "secret-token")
}

func TestMissingToken(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.GetUpdates(context.Background(), 0)
	require.True(t, errors.Is(err, errors.ErrConfigurationMissing))
}

func TestMessageCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "/start"},
		{"/HQ@sieve_bot", "/hq"},
		{"  /pending now", "/pending"},
		{"hello /start", ""},
		{"", ""},
	}
	for _, tt := range tests {
		m := &Message{Text: tt.text}
		require.Equal(t, tt.want, m.Command(), tt.text)
	}
}
