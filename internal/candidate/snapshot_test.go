package candidate

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s := NewStore(10)
	due := time.Date(2024, 1, 2, 10, 0, 0, 0, msk)

	first := testCandidate(1)
	first.DueAt = &due
	first.Reason = "keyword:срочн"
	s.Append(first)
	s.Append(testCandidate(2))
	s.Append(testCandidate(3))
	_, err := s.Transition("c-002", StatusCreated, "7312")
	require.NoError(t, err)
	_, err = s.Transition("c-003", StatusSkipped, "")
	require.NoError(t, err)

	snap, _ := s.Snapshot(time.Date(2024, 1, 1, 12, 0, 0, 0, msk))
	raw, err := snap.Encode()
	require.NoError(t, err)

	loaded, err := LoadSnapshot(raw, 10)
	require.NoError(t, err)
	require.False(t, loaded.Dirty())

	reloaded, _ := loaded.Snapshot(snap.UpdatedAt)
	require.Len(t, reloaded.TaskCandidates, 3)

	for i, want := range snap.TaskCandidates {
		got := reloaded.TaskCandidates[i]
		require.Equal(t, want.ID, got.ID, "order preserved")
		require.True(t, want.CreatedAt.Equal(got.CreatedAt))
		require.Equal(t, want.Source, got.Source)
		require.Equal(t, want.RawText, got.RawText)
		require.Equal(t, want.Reason, got.Reason)
		require.Equal(t, want.Content, got.Content)
		require.Equal(t, want.Status, got.Status)
		require.Equal(t, want.ExternalTaskID, got.ExternalTaskID)
		if want.DueAt == nil {
			require.Nil(t, got.DueAt)
		} else {
			require.NotNil(t, got.DueAt)
			require.True(t, want.DueAt.Equal(*got.DueAt))
		}
	}

	again, err := reloaded.Encode()
	require.NoError(t, err)
	require.Equal(t, raw, again, "encoding is stable across a load")
}

func TestSnapshot_Layout(t *testing.T) {
	s := NewStore(10)
	s.Append(testCandidate(1))
	snap, _ := s.Snapshot(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	raw, err := snap.Encode()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Equal(t, float64(SnapshotVersion), doc["version"])
	require.Equal(t, "2024-01-01T12:00:00Z", doc["updated_at"])

	items := doc["task_candidates"].([]any)
	item := items[0].(map[string]any)
	for _, key := range []string{"candidate_id", "created_at", "source", "raw_text", "reason", "content", "due_at", "status"} {
		require.Contains(t, item, key)
	}
	require.Nil(t, item["due_at"])
	require.NotContains(t, item, "external_task_id")
}

func TestLoadSnapshot_AbsentOrMalformed(t *testing.T) {
	s, err := LoadSnapshot("", 10)
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())

	s, err = LoadSnapshot("{not json", 10)
	require.Error(t, err)
	require.NotNil(t, s)
	require.Equal(t, 0, s.Len())

	s, err = LoadSnapshot(`{"version": 99, "task_candidates": []}`, 10)
	require.Error(t, err)
	require.Equal(t, 0, s.Len())
}

func TestLoadSnapshot_TrimsToCapacity(t *testing.T) {
	big := NewStore(50)
	for i := 0; i < 20; i++ {
		big.Append(testCandidate(i))
	}
	snap, _ := big.Snapshot(time.Now())
	raw, err := snap.Encode()
	require.NoError(t, err)

	small, err := LoadSnapshot(raw, 5)
	require.NoError(t, err)
	require.Equal(t, 5, small.Len())

	ids := make([]string, 0, 5)
	for _, c := range small.List(ListFilter{}) {
		ids = append(ids, c.ID)
	}
	require.Equal(t, "c-019,c-018,c-017,c-016,c-015", strings.Join(ids, ","))
}
