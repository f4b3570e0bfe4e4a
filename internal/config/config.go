package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultUTCOffsetHours is the zone used when none is configured.
const DefaultUTCOffsetHours = 3

// Variable store backends.
const (
	BackendRailway = "railway"
	BackendSQLite  = "sqlite"
)

// Config holds application configuration.
//
// Values are layered: DefaultConfig, then baseDir/config.json, then the
// process environment. Secrets are normally supplied only through the
// environment.
type Config struct {
	// TelegramToken is the bot token issued by @BotFather.
	TelegramToken string `json:"telegram_token,omitempty" env:"TELEGRAM_BOT_TOKEN"`

	// TelegramAPIRoot overrides the Bot API endpoint (tests, local bot API servers).
	TelegramAPIRoot string `json:"telegram_api_root,omitempty" env:"TELEGRAM_API_ROOT"`

	// TodoistToken authorizes task creation. Empty disables confirm.
	TodoistToken string `json:"todoist_token,omitempty" env:"TODOIST_API_TOKEN"`

	// TodoistAPIRoot overrides the Todoist REST endpoint.
	TodoistAPIRoot string `json:"todoist_api_root,omitempty" env:"TODOIST_API_ROOT"`

	// VariableBackend selects where MEMORY_JSON and chat bindings live:
	// "railway" or "sqlite". Empty picks railway when RailwayToken is set.
	VariableBackend string `json:"variable_backend,omitempty" env:"SIEVE_VARIABLE_BACKEND"`

	RailwayToken         string `json:"railway_token,omitempty" env:"RAILWAY_TOKEN"`
	RailwayProjectID     string `json:"railway_project_id,omitempty" env:"RAILWAY_PROJECT_ID"`
	RailwayEnvironmentID string `json:"railway_environment_id,omitempty" env:"RAILWAY_ENVIRONMENT_ID"`
	RailwayServiceID     string `json:"railway_service_id,omitempty" env:"RAILWAY_SERVICE_ID"`
	RailwayAPIURL        string `json:"railway_api_url,omitempty" env:"RAILWAY_API_URL"`

	// RailwayTriggerDeploys lets variable upserts redeploy the service.
	// Off by default: MEMORY_JSON is rewritten often.
	RailwayTriggerDeploys bool `json:"railway_trigger_deploys,omitempty" env:"RAILWAY_TRIGGER_DEPLOYS"`

	// CandidateCap bounds the candidate store (oldest evicted first).
	CandidateCap int `json:"candidate_cap,omitempty" env:"SIEVE_CANDIDATE_CAP"`

	// FlushIntervalSeconds is the minimum gap between non-forced flushes.
	FlushIntervalSeconds int `json:"flush_interval_seconds,omitempty" env:"SIEVE_FLUSH_INTERVAL_SECONDS"`

	// UTCOffsetHours is the fixed zone used for due-date extraction and display.
	// A pointer so an explicit 0 (UTC) survives the merge.
	UTCOffsetHours *int `json:"utc_offset_hours,omitempty" env:"SIEVE_UTC_OFFSET_HOURS"`

	// RawTextMaxChars caps the stored message text (runes).
	RawTextMaxChars int `json:"raw_text_max_chars,omitempty" env:"SIEVE_RAW_TEXT_MAX_CHARS"`

	// MonitoredChats limits intake to these chat ids. Empty means every
	// non-private chat the bot is in.
	MonitoredChats []int64 `json:"monitored_chats,omitempty" env:"SIEVE_MONITORED_CHATS" envSeparator:","`

	// PollTimeoutSeconds is the getUpdates long-poll timeout.
	PollTimeoutSeconds int `json:"poll_timeout_seconds,omitempty" env:"SIEVE_POLL_TIMEOUT_SECONDS"`

	LogLevel  string `json:"log_level,omitempty" env:"SIEVE_LOG_LEVEL"`
	LogFormat string `json:"log_format,omitempty" env:"SIEVE_LOG_FORMAT"`

	WebBind string `json:"web_bind,omitempty" env:"SIEVE_WEB_BIND"`
	WebPort int    `json:"web_port,omitempty" env:"SIEVE_WEB_PORT"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" env:"SIEVE_DISABLED_TOOLS" envSeparator:","`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TelegramAPIRoot:      "https://api.telegram.org",
		TodoistAPIRoot:       "https://api.todoist.com/rest/v2",
		RailwayAPIURL:        "https://backboard.railway.app/graphql/v2",
		CandidateCap:         300,
		FlushIntervalSeconds: 20,
		UTCOffsetHours:       intPtr(DefaultUTCOffsetHours),
		RawTextMaxChars:      2000,
		PollTimeoutSeconds:   25,
		LogLevel:             "info",
		LogFormat:            "json",
		WebBind:              "127.0.0.1",
		WebPort:              8090,
	}
}

// Load loads configuration from baseDir/config.json and the process environment.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.sieve.
func Load(baseDir string) (*Config, error) {
	return LoadWithEnv(baseDir, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadWithEnv(baseDir string, environ map[string]string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	overlay, err := parseEnv(environ)
	if err != nil {
		return nil, err
	}
	cfg = Merge(cfg, overlay)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseEnv reads the env-tagged fields into a zero-valued Config so unset
// variables leave the lower layers untouched.
func parseEnv(environ map[string]string) (*Config, error) {
	overlay := &Config{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(overlay, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return overlay, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.TelegramToken = pickString(overlay.TelegramToken, base.TelegramToken)
	result.TelegramAPIRoot = pickString(overlay.TelegramAPIRoot, base.TelegramAPIRoot)
	result.TodoistToken = pickString(overlay.TodoistToken, base.TodoistToken)
	result.TodoistAPIRoot = pickString(overlay.TodoistAPIRoot, base.TodoistAPIRoot)
	result.VariableBackend = pickString(overlay.VariableBackend, base.VariableBackend)
	result.RailwayToken = pickString(overlay.RailwayToken, base.RailwayToken)
	result.RailwayProjectID = pickString(overlay.RailwayProjectID, base.RailwayProjectID)
	result.RailwayEnvironmentID = pickString(overlay.RailwayEnvironmentID, base.RailwayEnvironmentID)
	result.RailwayServiceID = pickString(overlay.RailwayServiceID, base.RailwayServiceID)
	result.RailwayAPIURL = pickString(overlay.RailwayAPIURL, base.RailwayAPIURL)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)
	result.WebBind = pickString(overlay.WebBind, base.WebBind)

	result.CandidateCap = pickInt(overlay.CandidateCap, base.CandidateCap)
	result.FlushIntervalSeconds = pickInt(overlay.FlushIntervalSeconds, base.FlushIntervalSeconds)
	result.UTCOffsetHours = base.UTCOffsetHours
	if overlay.UTCOffsetHours != nil {
		result.UTCOffsetHours = overlay.UTCOffsetHours
	}
	result.RawTextMaxChars = pickInt(overlay.RawTextMaxChars, base.RawTextMaxChars)
	result.PollTimeoutSeconds = pickInt(overlay.PollTimeoutSeconds, base.PollTimeoutSeconds)
	result.WebPort = pickInt(overlay.WebPort, base.WebPort)

	// Booleans: overlay wins if true, else base
	result.RailwayTriggerDeploys = base.RailwayTriggerDeploys || overlay.RailwayTriggerDeploys

	// Arrays: merge and deduplicate
	result.MonitoredChats = mergeInt64Slice(base.MonitoredChats, overlay.MonitoredChats)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.CandidateCap <= 0 {
		return fmt.Errorf("candidate_cap must be positive, got %d", c.CandidateCap)
	}
	if c.FlushIntervalSeconds < 0 {
		return fmt.Errorf("flush_interval_seconds must not be negative, got %d", c.FlushIntervalSeconds)
	}
	if off := c.utcOffset(); off < -12 || off > 14 {
		return fmt.Errorf("utc_offset_hours out of range: %d", off)
	}
	switch c.VariableBackend {
	case "", BackendRailway, BackendSQLite:
	default:
		return fmt.Errorf("variable_backend must be one of: railway, sqlite")
	}
	return nil
}

// Backend resolves the variable store backend.
func (c *Config) Backend() string {
	if c.VariableBackend != "" {
		return c.VariableBackend
	}
	if c.RailwayToken != "" {
		return BackendRailway
	}
	return BackendSQLite
}

// FlushInterval returns the debounce window for non-forced flushes.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// Location returns the fixed local zone.
func (c *Config) Location() *time.Location {
	off := c.utcOffset()
	return time.FixedZone(fmt.Sprintf("UTC%+d", off), off*3600)
}

func (c *Config) utcOffset() int {
	if c.UTCOffsetHours == nil {
		return DefaultUTCOffsetHours
	}
	return *c.UTCOffsetHours
}

func intPtr(v int) *int {
	return &v
}

// IsMonitored reports whether intake should consider chatID.
func (c *Config) IsMonitored(chatID int64) bool {
	if len(c.MonitoredChats) == 0 {
		return true
	}
	for _, id := range c.MonitoredChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

func mergeInt64Slice(a, b []int64) []int64 {
	seen := make(map[int64]bool)
	result := make([]int64, 0, len(a)+len(b))
	for _, v := range append(append([]int64{}, a...), b...) {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
