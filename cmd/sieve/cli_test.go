package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/config"
	"github.com/hpungsan/sieve/internal/triage"
)

// testConfig returns a config that keeps variables in a local SQLite file.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.VariableBackend = config.BackendSQLite
	return cfg
}

// runCapture runs the app with args and returns what it wrote to stdout.
func runCapture(t *testing.T, baseDir string, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(baseDir, cfg)

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := app.Run(append([]string{"sieve"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), runErr
}

// seedLedger writes a snapshot with one drafted and one skipped candidate.
func seedLedger(t *testing.T, baseDir string, cfg *config.Config) {
	t.Helper()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, cfg.Location())
	store := candidate.NewStore(cfg.CandidateCap)
	store.Append(candidate.Candidate{
		ID: "a_-100", CreatedAt: now, RawText: "надо сдать отчёт",
		Reason: triage.KeywordReason("надо"), Content: "надо сдать отчёт", Status: candidate.StatusDrafted,
	})
	store.Append(candidate.Candidate{
		ID: "b_-100", CreatedAt: now.Add(time.Minute), RawText: "сколько стоит?",
		Reason: triage.ReasonQuestion, Content: "сколько стоит?", Status: candidate.StatusDrafted,
	})
	if _, err := store.Transition("b_-100", candidate.StatusSkipped, ""); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	snap, _ := store.Snapshot(now)
	raw, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := runCapture(t, baseDir, cfg, "vars", "set", candidate.MemoryVariable, raw); err != nil {
		t.Fatalf("vars set failed: %v", err)
	}
}

func TestCLIClassify(t *testing.T) {
	out, err := runCapture(t, "", testConfig(),
		"classify", "--now=2024-01-01T09:00:00+03:00", "завтра в 10:00 созвонимся")
	if err != nil {
		t.Fatalf("classify command failed: %v", err)
	}

	var output ClassifyOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if !output.Important || output.Reason != string(triage.ReasonDateTime) {
		t.Errorf("verdict = %v/%q, want important date/time", output.Important, output.Reason)
	}
	if output.DueAt == nil {
		t.Fatal("expected due_at")
	}
	want := time.Date(2024, 1, 2, 10, 0, 0, 0, time.FixedZone("", 3*3600))
	if !output.DueAt.Equal(want) {
		t.Errorf("due_at = %v, want %v", output.DueAt, want)
	}
}

func TestCLIClassify_FromStdin(t *testing.T) {
	oldStdin := os.Stdin
	stdinR, stdinW, _ := os.Pipe()
	os.Stdin = stdinR
	defer func() { os.Stdin = oldStdin }()

	go func() {
		_, _ = stdinW.WriteString("ok")
		stdinW.Close()
	}()

	out, err := runCapture(t, "", testConfig(), "classify", "--voice")
	if err != nil {
		t.Fatalf("classify command failed: %v", err)
	}

	var output ClassifyOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if !output.Important || output.Reason != string(triage.ReasonVoice) {
		t.Errorf("verdict = %v/%q, want important voice", output.Important, output.Reason)
	}
}

func TestCLIClassify_BadNow(t *testing.T) {
	_, err := runCapture(t, "", testConfig(), "classify", "--now=tomorrow", "hi")
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestCLICandidates(t *testing.T) {
	baseDir := t.TempDir()
	cfg := testConfig()
	seedLedger(t, baseDir, cfg)

	t.Run("all newest first", func(t *testing.T) {
		out, err := runCapture(t, baseDir, cfg, "candidates")
		if err != nil {
			t.Fatalf("candidates command failed: %v", err)
		}
		var output CandidatesOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if output.Count != 2 || output.Candidates[0].ID != "b_-100" {
			t.Fatalf("candidates = %+v, want b_-100 first of 2", output.Candidates)
		}
		if output.Totals["drafted"] != 1 || output.Totals["skipped"] != 1 || output.Totals["created"] != 0 {
			t.Errorf("totals = %v", output.Totals)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		out, err := runCapture(t, baseDir, cfg, "candidates", "--status=drafted")
		if err != nil {
			t.Fatalf("candidates command failed: %v", err)
		}
		var output CandidatesOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if output.Count != 1 || output.Candidates[0].ID != "a_-100" {
			t.Errorf("candidates = %+v, want only a_-100", output.Candidates)
		}
	})

	t.Run("bad status", func(t *testing.T) {
		_, err := runCapture(t, baseDir, cfg, "candidates", "--status=pending")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

func TestCLICandidates_Empty(t *testing.T) {
	out, err := runCapture(t, t.TempDir(), testConfig(), "candidates")
	if err != nil {
		t.Fatalf("candidates command failed: %v", err)
	}
	var output CandidatesOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Count != 0 {
		t.Errorf("count = %d, want 0", output.Count)
	}
}

func TestCLIVars(t *testing.T) {
	baseDir := t.TempDir()
	cfg := testConfig()

	if _, err := runCapture(t, baseDir, cfg, "vars", "set", "OWNER_CHAT_ID", "42"); err != nil {
		t.Fatalf("vars set failed: %v", err)
	}

	out, err := runCapture(t, baseDir, cfg, "vars", "get", "OWNER_CHAT_ID")
	if err != nil {
		t.Fatalf("vars get failed: %v", err)
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output["value"] != "42" || output["set"] != true {
		t.Errorf("output = %v", output)
	}

	out, err = runCapture(t, baseDir, cfg, "vars", "get", "HQ_CHAT_ID")
	if err != nil {
		t.Fatalf("vars get failed: %v", err)
	}
	if !strings.Contains(out, `"set": false`) {
		t.Errorf("expected unset variable, got %s", out)
	}
}

func TestCLIVarsList(t *testing.T) {
	baseDir := t.TempDir()
	cfg := testConfig()

	for _, kv := range [][2]string{{"OWNER_CHAT_ID", "42"}, {"HQ_CHAT_ID", "-100"}} {
		if _, err := runCapture(t, baseDir, cfg, "vars", "set", kv[0], kv[1]); err != nil {
			t.Fatalf("vars set %s failed: %v", kv[0], err)
		}
	}

	t.Run("names only", func(t *testing.T) {
		out, err := runCapture(t, baseDir, cfg, "vars", "list")
		if err != nil {
			t.Fatalf("vars list failed: %v", err)
		}
		var output struct {
			Variables []VariableOutput `json:"variables"`
			Count     int              `json:"count"`
		}
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if output.Count != 2 || output.Variables[0].Name != "HQ_CHAT_ID" || output.Variables[1].Name != "OWNER_CHAT_ID" {
			t.Fatalf("variables = %+v, want HQ_CHAT_ID then OWNER_CHAT_ID", output.Variables)
		}
		if output.Variables[0].Value != "" || output.Variables[0].Chars != 4 {
			t.Errorf("entry = %+v, want value hidden and chars 4", output.Variables[0])
		}
	})

	t.Run("with values", func(t *testing.T) {
		out, err := runCapture(t, baseDir, cfg, "vars", "list", "--values")
		if err != nil {
			t.Fatalf("vars list failed: %v", err)
		}
		if !strings.Contains(out, `"value": "42"`) {
			t.Errorf("expected values in output, got %s", out)
		}
	})

	t.Run("railway backend", func(t *testing.T) {
		railway := testConfig()
		railway.VariableBackend = config.BackendRailway
		_, err := runCapture(t, baseDir, railway, "vars", "list")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

func TestCLIErrorHandling(t *testing.T) {
	t.Run("vars get without name", func(t *testing.T) {
		_, err := runCapture(t, t.TempDir(), testConfig(), "vars", "get")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("railway backend without credentials", func(t *testing.T) {
		cfg := testConfig()
		cfg.VariableBackend = config.BackendRailway
		_, err := runCapture(t, t.TempDir(), cfg, "vars", "set", "X", "1")
		if err == nil || !strings.Contains(err.Error(), "CONFIGURATION_MISSING") {
			t.Errorf("expected CONFIGURATION_MISSING, got %v", err)
		}
	})

	t.Run("run without telegram token", func(t *testing.T) {
		_, err := runCapture(t, t.TempDir(), testConfig(), "run")
		if err == nil || !strings.Contains(err.Error(), "CONFIGURATION_MISSING") {
			t.Errorf("expected CONFIGURATION_MISSING, got %v", err)
		}
	})
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"sieve"}, false},
		{"run command", []string{"sieve", "run"}, true},
		{"vars command", []string{"sieve", "vars", "get", "X"}, true},
		{"help flag", []string{"sieve", "--help"}, true},
		{"version flag", []string{"sieve", "-v"}, true},
		{"unknown", []string{"sieve", "serve"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.expected {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.expected)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	for _, args := range [][]string{{"sieve", "help"}, {"sieve", "-h"}, {"sieve", "--version"}} {
		if !isHelpOrVersion(args) {
			t.Errorf("isHelpOrVersion(%v) = false, want true", args)
		}
	}
	for _, args := range [][]string{{"sieve"}, {"sieve", "run"}} {
		if isHelpOrVersion(args) {
			t.Errorf("isHelpOrVersion(%v) = true, want false", args)
		}
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString("  small content\n")
			w.Close()
		}()

		oldStdin := os.Stdin
		os.Stdin = r
		defer func() { os.Stdin = oldStdin }()

		result, err := readStdin(1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "small content" {
			t.Errorf("expected %q, got %q", "small content", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString(strings.Repeat("x", 100))
			w.Close()
		}()

		oldStdin := os.Stdin
		os.Stdin = r
		defer func() { os.Stdin = oldStdin }()

		if _, err := readStdin(50); err == nil {
			t.Error("expected error for oversized input")
		}
	})
}
