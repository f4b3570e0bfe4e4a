package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/telegram"
	"github.com/hpungsan/sieve/internal/todoist"
)

// Callback data prefixes.
const (
	ActionConfirm = "confirm"
	ActionSkip    = "skip"
)

// User-visible replies to owner actions.
const (
	ReplyUnknown        = "Unknown or expired, cannot act."
	ReplyAlreadyHandled = "Already handled."
	ReplyCreating       = "Creating task…"
	ReplySkipped        = "Skipped."
	ReplyNotOwner       = "Only the owner can act on candidates."
	ReplyBadAction      = "Unrecognized action."
)

const displayLayout = "2006-01-02 15:04"

func actionButtons(id string) [][]telegram.Button {
	return [][]telegram.Button{{
		{Text: "✅ Confirm", CallbackData: ActionConfirm + ":" + id},
		{Text: "✖ Skip", CallbackData: ActionSkip + ":" + id},
	}}
}

func (e *Engine) formatDue(due *time.Time) string {
	if due == nil {
		return ""
	}
	return due.In(e.loc).Format(displayLayout)
}

func (e *Engine) ownerNotice(c candidate.Candidate) string {
	var b strings.Builder
	b.WriteString("New task candidate\n")
	fmt.Fprintf(&b, "Chat: %s\n", sourceLabel(c.Source))
	if c.Source.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", c.Source.Author)
	}
	fmt.Fprintf(&b, "Reason: %s\n", c.Reason)
	if due := e.formatDue(c.DueAt); due != "" {
		fmt.Fprintf(&b, "Due: %s\n", due)
	}
	b.WriteString("\n")
	b.WriteString(c.Content)
	return b.String()
}

func hqSummary(c candidate.Candidate) string {
	who := c.Source.Author
	if who == "" {
		who = "unknown"
	}
	return fmt.Sprintf("Important in %s from %s (%s):\n%s", sourceLabel(c.Source), who, c.Reason, c.Content)
}

func (e *Engine) createdNotice(c candidate.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task created: %s\n", c.Content)
	if due := e.formatDue(c.DueAt); due != "" {
		fmt.Fprintf(&b, "Due: %s\n", due)
	}
	fmt.Fprintf(&b, "Chat: %s", sourceLabel(c.Source))
	return b.String()
}

func skippedNotice(c candidate.Candidate) string {
	return fmt.Sprintf("Skipped: %s\nChat: %s", c.Content, sourceLabel(c.Source))
}

func failedNotice(c candidate.Candidate, err error) string {
	return fmt.Sprintf("Could not create task %q: %s\nPress Confirm again to retry.", c.Content, diagnostic(err))
}

// taskDescription is the tracker-side description of a candidate.
func taskDescription(c candidate.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s (%d)\n", c.Source.ChatTitle, c.Source.ChatID)
	if c.Source.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", c.Source.Author)
	}
	b.WriteString("\n")
	b.WriteString(c.RawText)
	return b.String()
}

func (e *Engine) dueString(c candidate.Candidate) string {
	if c.DueAt == nil {
		return ""
	}
	return c.DueAt.In(e.loc).Format(todoist.DueLayout)
}

func sourceLabel(s candidate.Source) string {
	if s.ChatTitle == "" {
		return fmt.Sprintf("%d", s.ChatID)
	}
	return s.ChatTitle
}
