package workflow

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/sieve/internal/vars"
)

// Bindings are the owner and HQ chats. Zero means unbound.
type Bindings struct {
	OwnerChatID int64 `json:"owner_chat_id"`
	HQChatID    int64 `json:"hq_chat_id"`
}

// Bindings returns the current bindings.
func (e *Engine) Bindings() Bindings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bindings
}

// LoadBindings reads OWNER_CHAT_ID and HQ_CHAT_ID. Unreadable or malformed
// values are logged and leave the binding unset.
func (e *Engine) LoadBindings(ctx context.Context) {
	owner := e.loadChatID(ctx, vars.OwnerChatID)
	hq := e.loadChatID(ctx, vars.HQChatID)

	e.mu.Lock()
	e.bindings = Bindings{OwnerChatID: owner, HQChatID: hq}
	e.mu.Unlock()

	e.logger.Info(ctx, "bindings loaded", zap.Int64("owner_chat_id", owner), zap.Int64("hq_chat_id", hq))
}

func (e *Engine) loadChatID(ctx context.Context, name string) int64 {
	raw, ok, err := e.vars.Get(ctx, name)
	if err != nil {
		e.logger.Warn(ctx, "read binding failed", zap.String("variable", name), zap.Error(err))
		return 0
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		e.logger.Warn(ctx, "malformed binding ignored", zap.String("variable", name), zap.String("value", raw))
		return 0
	}
	return id
}

// BindOwner binds chatID as the owner and persists it. The binding takes
// effect for this run even when persisting fails; the error is returned.
func (e *Engine) BindOwner(ctx context.Context, chatID int64) error {
	e.mu.Lock()
	e.bindings.OwnerChatID = chatID
	e.mu.Unlock()
	return e.persistBinding(ctx, vars.OwnerChatID, chatID)
}

// BindHQ binds chatID as the HQ chat and persists it, like BindOwner.
func (e *Engine) BindHQ(ctx context.Context, chatID int64) error {
	e.mu.Lock()
	e.bindings.HQChatID = chatID
	e.mu.Unlock()
	return e.persistBinding(ctx, vars.HQChatID, chatID)
}

func (e *Engine) persistBinding(ctx context.Context, name string, chatID int64) error {
	if err := e.vars.Set(ctx, name, strconv.FormatInt(chatID, 10)); err != nil {
		e.logger.Warn(ctx, "persist binding failed", zap.String("variable", name), zap.Error(err))
		return err
	}
	e.logger.Info(ctx, "binding saved", zap.String("variable", name), zap.Int64("chat_id", chatID))
	return nil
}
