// Package telegram is a small Bot API client: long polling plus the
// handful of outbound calls the bot needs.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hpungsan/sieve/internal/errors"
)

const (
	// DefaultAPIRoot is the public Bot API endpoint.
	DefaultAPIRoot = "https://api.telegram.org"

	defaultPollTimeout = 25

	// Telegram allows about 30 messages per second per bot.
	defaultRateLimit = 25.0
	defaultBurst     = 5
)

// AllowedUpdates are the update kinds requested from getUpdates.
var AllowedUpdates = []string{"message", "callback_query"}

type Config struct {
	Token string

	// APIRoot overrides DefaultAPIRoot.
	APIRoot string

	// PollTimeoutSeconds is the getUpdates long-poll timeout.
	PollTimeoutSeconds int
}

// Client calls the Bot API. Outbound calls share one rate limiter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIRoot) == "" {
		cfg.APIRoot = DefaultAPIRoot
	}
	if cfg.PollTimeoutSeconds <= 0 {
		cfg.PollTimeoutSeconds = defaultPollTimeout
	}
	return &Client{
		cfg: cfg,
		// Long polls hold the connection for PollTimeoutSeconds.
		httpClient: &http.Client{Timeout: time.Duration(cfg.PollTimeoutSeconds+10) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{
		"timeout":         c.cfg.PollTimeoutSeconds,
		"allowed_updates": AllowedUpdates,
	}
	if offset > 0 {
		payload["offset"] = offset
	}
	var out getUpdatesResponse
	if err := c.call(ctx, "getUpdates", payload, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// SendMessage sends text to chatID with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, buttons [][]Button) (Message, error) {
	if err := c.wait(ctx); err != nil {
		return Message{}, err
	}
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if len(buttons) > 0 {
		payload["reply_markup"] = inlineKeyboardMarkup{InlineKeyboard: buttons}
	}
	var out messageResponse
	if err := c.call(ctx, "sendMessage", payload, &out); err != nil {
		return Message{}, err
	}
	return out.Result, nil
}

// EditMessageText replaces the text of a sent message and drops its keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// AnswerCallbackQuery acknowledges a button press. text may be empty.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	if strings.TrimSpace(c.cfg.Token) == "" {
		return errors.NewConfigurationMissing("TELEGRAM_BOT_TOKEN")
	}
	url := strings.TrimRight(c.cfg.APIRoot, "/") + "/bot" + c.cfg.Token + "/" + method
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of the message.
		return errors.NewCollaboratorUnavailable("telegram", fmt.Errorf("%s: %s", method, redact(err.Error(), c.cfg.Token)))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var base apiResponse
	if err := json.Unmarshal(respBody, &base); err != nil || !base.OK {
		desc := strings.TrimSpace(string(respBody))
		if base.Description != "" {
			desc = base.Description
		}
		return errors.NewCollaboratorUnavailable("telegram",
			fmt.Errorf("%s: status=%d %s", method, resp.StatusCode, desc))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.NewCollaboratorUnavailable("telegram", fmt.Errorf("%s: decode: %w", method, err))
		}
	}
	return nil
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}
