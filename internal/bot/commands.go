package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/telegram"
)

// PendingLimit bounds how many drafts /pending re-sends.
const PendingLimit = 10

const helpText = `Sieve watches your group chats and drafts tasks from important messages.

/start - register as the owner (first user only)
/hq - send in a group to make it the HQ chat
/pending - re-send drafts awaiting a decision
/status - candidate counts and bindings
/help - this message`

func (b *Bot) handleCommand(ctx context.Context, m *telegram.Message) {
	cmd := m.Command()
	private := m.Chat.Type == telegram.ChatPrivate

	if cmd == "/hq" {
		b.cmdHQ(ctx, m)
		return
	}
	if !private {
		return
	}

	switch cmd {
	case "/start":
		b.cmdStart(ctx, m)
	case "/help":
		b.reply(ctx, m.Chat.ID, helpText)
	case "/pending":
		if b.requireOwner(ctx, m) {
			b.cmdPending(ctx, m)
		}
	case "/status":
		if b.requireOwner(ctx, m) {
			b.cmdStatus(ctx, m)
		}
	default:
		b.reply(ctx, m.Chat.ID, "Unknown command. Send /help for the list.")
	}
}

func (b *Bot) isOwner(m *telegram.Message) bool {
	owner := b.engine.Bindings().OwnerChatID
	return owner != 0 && m.From != nil && m.From.ID == owner
}

func (b *Bot) requireOwner(ctx context.Context, m *telegram.Message) bool {
	if b.isOwner(m) {
		return true
	}
	b.reply(ctx, m.Chat.ID, "Only the owner can use this command.")
	return false
}

func (b *Bot) cmdStart(ctx context.Context, m *telegram.Message) {
	owner := b.engine.Bindings().OwnerChatID
	switch {
	case owner == 0:
		msg := "You are now the owner. Drafts will arrive here.\n\n" + helpText
		if err := b.engine.BindOwner(ctx, m.Chat.ID); err != nil {
			msg = "You are the owner for this run, but saving failed: " + err.Error()
		}
		b.reply(ctx, m.Chat.ID, msg)
	case owner == m.Chat.ID:
		b.reply(ctx, m.Chat.ID, "You are already the owner.\n\n"+helpText)
	default:
		b.reply(ctx, m.Chat.ID, "This bot already has an owner.")
	}
}

func (b *Bot) cmdHQ(ctx context.Context, m *telegram.Message) {
	if m.Chat.Type == telegram.ChatPrivate {
		b.reply(ctx, m.Chat.ID, "Send /hq in the group that should receive summaries.")
		return
	}
	if !b.isOwner(m) {
		return
	}
	msg := "This chat is now HQ."
	if err := b.engine.BindHQ(ctx, m.Chat.ID); err != nil {
		msg = "HQ set for this run, but saving failed: " + err.Error()
	}
	b.reply(ctx, m.Chat.ID, msg)
}

func (b *Bot) cmdPending(ctx context.Context, m *telegram.Message) {
	n, err := b.engine.NotifyPending(ctx, PendingLimit)
	switch {
	case err != nil:
		b.reply(ctx, m.Chat.ID, "Could not re-send drafts: "+err.Error())
	case n == 0:
		b.reply(ctx, m.Chat.ID, "No pending drafts.")
	}
}

func (b *Bot) cmdStatus(ctx context.Context, m *telegram.Message) {
	store := b.engine.Store()
	counts := store.Counts()
	bindings := b.engine.Bindings()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Candidates: %d / %d\n", store.Len(), store.Capacity())
	fmt.Fprintf(&sb, "Drafted: %d\nCreated: %d\nSkipped: %d\n",
		counts[candidate.StatusDrafted], counts[candidate.StatusCreated], counts[candidate.StatusSkipped])
	fmt.Fprintf(&sb, "Owner: %s\nHQ: %s\n", bindingLabel(bindings.OwnerChatID), bindingLabel(bindings.HQChatID))
	if last := b.engine.LastFlush(); !last.IsZero() {
		fmt.Fprintf(&sb, "Last saved: %s\n", last.In(b.engine.Location()).Format("2006-01-02 15:04:05"))
	} else {
		sb.WriteString("Last saved: never\n")
	}
	if store.Dirty() {
		sb.WriteString("Unsaved changes pending.")
	}
	b.reply(ctx, m.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

func bindingLabel(id int64) string {
	if id == 0 {
		return "not set"
	}
	return fmt.Sprintf("%d", id)
}
