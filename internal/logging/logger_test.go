package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := WithUpdateID(context.Background(), 42)
	l.Info(ctx, "flushed", zap.Int("candidates", 3))
	l.Debug(ctx, "filtered out")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "flushed" {
		t.Errorf("msg = %v, want flushed", entry["msg"])
	}
	if entry["update_id"] != float64(42) {
		t.Errorf("update_id = %v, want 42", entry["update_id"])
	}
	if entry["service"] != "sieve" {
		t.Errorf("service = %v, want sieve", entry["service"])
	}
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := NewLogger(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	tl.Named("bot").Warn(context.Background(), "poll failed")

	tl.AssertLogged(t, zapcore.WarnLevel, "poll failed")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "poll failed")
	if len(tl.All()) != 1 {
		t.Errorf("entries = %d, want 1", len(tl.All()))
	}
}
