package candidate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SnapshotVersion is the current layout of the persisted document.
const SnapshotVersion = 1

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	Version        int         `json:"version"`
	UpdatedAt      time.Time   `json:"updated_at"`
	TaskCandidates []Candidate `json:"task_candidates"`
}

// Snapshot copies the store's candidates in insertion order. The returned
// revision identifies the captured state for markFlushed.
func (s *Store) Snapshot(now time.Time) (Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Candidate, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Version:        SnapshotVersion,
		UpdatedAt:      now,
		TaskCandidates: items,
	}, s.revision
}

// Encode serializes a snapshot.
func (snap Snapshot) Encode() (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a persisted document.
func DecodeSnapshot(raw string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}
	return snap, nil
}

// LoadSnapshot builds a Store from a persisted document. An absent document
// yields an empty store. A malformed one also yields an empty store, plus
// the decode error so the caller can report it; it is never fatal.
func LoadSnapshot(raw string, capacity int) (*Store, error) {
	s := NewStore(capacity)
	if strings.TrimSpace(raw) == "" {
		return s, nil
	}

	snap, err := DecodeSnapshot(raw)
	if err != nil {
		return s, err
	}

	items := make([]Candidate, 0, len(snap.TaskCandidates))
	for _, c := range snap.TaskCandidates {
		if c.ID == "" {
			continue
		}
		if c.Status == "" {
			c.Status = StatusDrafted
		}
		items = append(items, c)
	}
	if len(items) > s.capacity {
		items = items[len(items)-s.capacity:]
	}
	s.items = items
	return s, nil
}
