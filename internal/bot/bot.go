// Package bot runs the Telegram update loop and dispatches each update to
// the approval workflow.
package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/sieve/internal/logging"
	"github.com/hpungsan/sieve/internal/telegram"
	"github.com/hpungsan/sieve/internal/workflow"
)

const shutdownFlushTimeout = 10 * time.Second

// Poller fetches updates with id >= offset.
type Poller interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
}

// Bot owns the update offset. Run must be called from one goroutine.
type Bot struct {
	poller    Poller
	messenger workflow.Messenger
	engine    *workflow.Engine
	logger    *logging.Logger

	// backoff is the pause after a failed poll.
	backoff time.Duration
	offset  int64
}

// New creates a Bot.
func New(poller Poller, messenger workflow.Messenger, engine *workflow.Engine, logger *logging.Logger, backoff time.Duration) *Bot {
	if logger == nil {
		logger = logging.NewNop()
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Bot{
		poller:    poller,
		messenger: messenger,
		engine:    engine,
		logger:    logger.Named("bot"),
		backoff:   backoff,
	}
}

// Run polls until ctx is cancelled, then makes a final forced flush.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info(ctx, "bot started")
	for {
		if err := b.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			b.engine.Metrics().ObservePollError()
			b.logger.Warn(ctx, "poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(b.backoff):
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	if b.engine.Store().Dirty() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer cancel()
		b.engine.Flush(flushCtx, true)
	}
	b.logger.Info(ctx, "bot stopped")
	return nil
}

// PollOnce fetches one batch, dispatches it in order and offers a flush.
func (b *Bot) PollOnce(ctx context.Context) error {
	updates, err := b.poller.GetUpdates(ctx, b.offset)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if u.UpdateID >= b.offset {
			b.offset = u.UpdateID + 1
		}
		b.Dispatch(logging.WithUpdateID(ctx, u.UpdateID), u)
	}
	b.engine.Flush(ctx, false)
	return nil
}

// Offset returns the next update id to request.
func (b *Bot) Offset() int64 {
	return b.offset
}

// Dispatch routes one update. Failures are logged, never returned.
func (b *Bot) Dispatch(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		if err := b.engine.Resolve(ctx, workflow.ActionFromTelegram(u.CallbackQuery)); err != nil {
			b.logger.Info(ctx, "action not applied", zap.String("data", u.CallbackQuery.Data), zap.Error(err))
		}
	case u.Message != nil:
		if u.Message.Command() != "" {
			b.handleCommand(ctx, u.Message)
			return
		}
		if _, err := b.engine.HandleMessage(ctx, workflow.FromTelegram(u.Message)); err != nil {
			b.logger.Error(ctx, "intake failed", zap.Error(err))
		}
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.messenger.SendMessage(ctx, chatID, text, nil); err != nil {
		b.logger.Warn(ctx, "reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
