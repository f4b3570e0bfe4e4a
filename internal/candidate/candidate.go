// Package candidate holds task candidates awaiting an owner decision: the
// bounded in-memory ledger, its JSON snapshot, and the flush policy.
package candidate

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/sieve/internal/triage"
)

// Status is the approval state of a candidate.
type Status string

const (
	StatusDrafted Status = "drafted"
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCreated || s == StatusSkipped
}

// Source identifies where a candidate's message came from.
type Source struct {
	ChatID    int64  `json:"chat_id"`
	ChatTitle string `json:"chat_title"`
	Author    string `json:"author"`
}

// Candidate is a message-derived task draft.
type Candidate struct {
	// ID correlates owner actions with this candidate for its whole life.
	ID        string    `json:"candidate_id"`
	CreatedAt time.Time `json:"created_at"`
	Source    Source    `json:"source"`

	// RawText is the message text (or VoicePlaceholder), rune-capped.
	RawText string        `json:"raw_text"`
	Reason  triage.Reason `json:"reason"`

	Content string     `json:"content"`
	DueAt   *time.Time `json:"due_at"`

	Status Status `json:"status"`

	// ExternalTaskID is set only once Status is created.
	ExternalTaskID string `json:"external_task_id,omitempty"`
}

// VoicePlaceholder stands in for the text of a voice message.
const VoicePlaceholder = "[voice message]"

// NewID derives a candidate id from the creation time and the source chat.
// The ULID half sorts by time; the chat half keeps ids from different chats
// created in the same millisecond apart.
func NewID(createdAt time.Time, chatID int64) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(createdAt), entropy)
	if err != nil {
		return "", fmt.Errorf("generate candidate id: %w", err)
	}
	return id.String() + "_" + strconv.FormatInt(chatID, 10), nil
}
