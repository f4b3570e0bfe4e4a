package workflow

import (
	"context"
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/errors"
	"github.com/hpungsan/sieve/internal/metrics"
	"github.com/hpungsan/sieve/internal/telegram"
)

// Action is an owner's button press.
type Action struct {
	CallbackID string
	FromID     int64

	// ChatID and MessageID locate the notification carrying the buttons.
	ChatID    int64
	MessageID int64

	// Data is "confirm:<candidate_id>" or "skip:<candidate_id>".
	Data string
}

// ActionFromTelegram converts a callback query.
func ActionFromTelegram(q *telegram.CallbackQuery) Action {
	a := Action{CallbackID: q.ID, FromID: q.From.ID, Data: q.Data}
	if q.Message != nil {
		a.ChatID = q.Message.Chat.ID
		a.MessageID = q.Message.MessageID
	}
	return a
}

// ParseAction splits callback data into its verb and candidate id.
func ParseAction(data string) (verb, id string, err error) {
	verb, id, ok := strings.Cut(data, ":")
	if !ok || id == "" || (verb != ActionConfirm && verb != ActionSkip) {
		return "", "", errors.NewInvalidRequest("unrecognized action: " + data)
	}
	return verb, id, nil
}

// Resolve applies an owner's action. Every outcome is reported back to the
// owner; the returned error is for logging and tests.
func (e *Engine) Resolve(ctx context.Context, a Action) error {
	verb, id, err := ParseAction(a.Data)
	if err != nil {
		e.answer(ctx, a, ReplyBadAction)
		return err
	}

	if owner := e.Bindings().OwnerChatID; owner != 0 && a.FromID != owner {
		e.answer(ctx, a, ReplyNotOwner)
		return errors.NewInvalidRequest("action from non-owner")
	}

	c, err := e.store.Claim(id)
	if err != nil {
		e.answer(ctx, a, replyFor(err))
		return err
	}

	if verb == ActionConfirm && e.tracker == nil {
		e.store.Release(id)
		err := errors.NewConfigurationMissing("task tracker")
		e.answer(ctx, a, err.Message)
		return err
	}

	if verb == ActionSkip {
		return e.skip(ctx, a, c)
	}
	return e.confirm(ctx, a, c)
}

func (e *Engine) confirm(ctx context.Context, a Action, c candidate.Candidate) error {
	e.answer(ctx, a, ReplyCreating)

	taskID, err := e.tracker.CreateTask(ctx, c.Content, taskDescription(c), e.dueString(c))
	if err != nil {
		e.store.Release(c.ID)
		e.metrics.ObserveResolution(metrics.OutcomeFailed)
		e.logger.Warn(ctx, "task creation failed", zap.String("candidate_id", c.ID), zap.Error(err))
		e.report(ctx, a, failedNotice(c, err))
		return err
	}

	updated, err := e.store.Transition(c.ID, candidate.StatusCreated, taskID)
	if err != nil {
		e.logger.Error(ctx, "transition after task creation failed",
			zap.String("candidate_id", c.ID), zap.String("task_id", taskID), zap.Error(err))
		return err
	}
	e.metrics.ObserveResolution(metrics.OutcomeCreated)
	e.logger.Info(ctx, "task created", zap.String("candidate_id", c.ID), zap.String("task_id", taskID))

	e.Flush(ctx, true)
	e.replace(ctx, a, e.createdNotice(updated))
	return nil
}

func (e *Engine) skip(ctx context.Context, a Action, c candidate.Candidate) error {
	updated, err := e.store.Transition(c.ID, candidate.StatusSkipped, "")
	if err != nil {
		e.store.Release(c.ID)
		e.answer(ctx, a, replyFor(err))
		return err
	}
	e.metrics.ObserveResolution(metrics.OutcomeSkipped)
	e.logger.Info(ctx, "candidate skipped", zap.String("candidate_id", c.ID))

	e.Flush(ctx, true)
	e.answer(ctx, a, ReplySkipped)
	e.replace(ctx, a, skippedNotice(updated))
	return nil
}

// answer acknowledges the button press.
func (e *Engine) answer(ctx context.Context, a Action, text string) {
	if a.CallbackID == "" {
		return
	}
	if err := e.messenger.AnswerCallbackQuery(ctx, a.CallbackID, text); err != nil {
		e.logger.Warn(ctx, "answer callback failed", zap.Error(err))
	}
}

// replace rewrites the notification, dropping its buttons.
func (e *Engine) replace(ctx context.Context, a Action, text string) {
	if a.MessageID == 0 {
		e.report(ctx, a, text)
		return
	}
	if err := e.messenger.EditMessageText(ctx, a.ChatID, a.MessageID, text); err != nil {
		e.logger.Warn(ctx, "edit notification failed", zap.Error(err))
	}
}

// report sends a new message to the chat the action came from.
func (e *Engine) report(ctx context.Context, a Action, text string) {
	chatID := a.ChatID
	if chatID == 0 {
		chatID = e.Bindings().OwnerChatID
	}
	if chatID == 0 {
		return
	}
	if _, err := e.messenger.SendMessage(ctx, chatID, text, nil); err != nil {
		e.logger.Warn(ctx, "report failed", zap.Error(err))
	}
}

func replyFor(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		return ReplyUnknown
	case errors.ErrAlreadyHandled:
		return ReplyAlreadyHandled
	default:
		return diagnostic(err)
	}
}

// diagnostic returns the human-readable part of err.
func diagnostic(err error) string {
	var sErr *errors.SieveError
	if stderrors.As(err, &sErr) {
		return sErr.Message
	}
	return err.Error()
}
