package workflow

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/errors"
	"github.com/hpungsan/sieve/internal/telegram"
	"github.com/hpungsan/sieve/internal/triage"
)

// Message is an inbound chat message.
type Message struct {
	ChatID    int64
	ChatType  string
	ChatTitle string
	Author    string

	// Text is the message text, or the caption for media.
	Text    string
	IsVoice bool
}

// FromTelegram converts a Bot API message.
func FromTelegram(m *telegram.Message) Message {
	return Message{
		ChatID:    m.Chat.ID,
		ChatType:  m.Chat.Type,
		ChatTitle: m.Chat.DisplayTitle(),
		Author:    m.From.DisplayName(),
		Text:      m.Body(),
		IsVoice:   m.Voice != nil,
	}
}

// HandleMessage runs intake for one message. It returns the new candidate,
// or nil when the message is out of scope or not important. Delivery
// failures are logged; they never undo the stored candidate.
func (e *Engine) HandleMessage(ctx context.Context, m Message) (*candidate.Candidate, error) {
	if !e.inScope(m) {
		return nil, nil
	}

	verdict := triage.Classify(m.Text, m.IsVoice)
	e.metrics.ObserveMessage(verdict.Important)
	if !verdict.Important {
		e.logger.Debug(ctx, "message not important", zap.Int64("chat_id", m.ChatID), zap.String("reason", string(verdict.Reason)))
		return nil, nil
	}

	raw := m.Text
	if m.IsVoice && strings.TrimSpace(raw) == "" {
		raw = candidate.VoicePlaceholder
	}
	raw = triage.TruncateRunes(raw, e.rawMax)

	now := e.now().In(e.loc)
	draft := triage.Extract(raw, now)

	id, err := candidate.NewID(now, m.ChatID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	c := candidate.Candidate{
		ID:        id,
		CreatedAt: now,
		Source: candidate.Source{
			ChatID:    m.ChatID,
			ChatTitle: m.ChatTitle,
			Author:    m.Author,
		},
		RawText: raw,
		Reason:  verdict.Reason,
		Content: draft.Content,
		DueAt:   draft.DueAt,
		Status:  candidate.StatusDrafted,
	}

	for _, ev := range e.store.Append(c) {
		e.logger.Info(ctx, "candidate evicted", zap.String("candidate_id", ev.ID), zap.String("status", string(ev.Status)))
	}
	e.logger.Info(ctx, "candidate drafted",
		zap.String("candidate_id", c.ID),
		zap.Int64("chat_id", m.ChatID),
		zap.String("reason", string(c.Reason)))

	e.Flush(ctx, false)

	b := e.Bindings()
	if b.HQChatID != 0 {
		if _, err := e.messenger.SendMessage(ctx, b.HQChatID, hqSummary(c), nil); err != nil {
			e.logger.Warn(ctx, "hq relay failed", zap.String("candidate_id", c.ID), zap.Error(err))
		}
	}

	if err := e.notifyOwner(ctx, c); err != nil {
		e.logger.Warn(ctx, "owner notification failed", zap.String("candidate_id", c.ID), zap.Error(err))
	}

	return &c, nil
}

func (e *Engine) inScope(m Message) bool {
	if m.ChatType == telegram.ChatPrivate {
		return false
	}
	if hq := e.Bindings().HQChatID; hq != 0 && m.ChatID == hq {
		return false
	}
	if e.monitored != nil && !e.monitored(m.ChatID) {
		return false
	}
	return true
}

func (e *Engine) notifyOwner(ctx context.Context, c candidate.Candidate) error {
	owner := e.Bindings().OwnerChatID
	if owner == 0 {
		return errors.NewConfigurationMissing("owner chat")
	}
	_, err := e.messenger.SendMessage(ctx, owner, e.ownerNotice(c), actionButtons(c.ID))
	return err
}

// NotifyPending re-sends notifications for up to limit drafted candidates,
// newest first, and returns how many were sent.
func (e *Engine) NotifyPending(ctx context.Context, limit int) (int, error) {
	pending := e.store.List(candidate.ListFilter{Status: candidate.StatusDrafted, Limit: limit})
	sent := 0
	for _, c := range pending {
		if err := e.notifyOwner(ctx, c); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
