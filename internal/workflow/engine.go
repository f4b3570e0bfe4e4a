// Package workflow turns important chat messages into task candidates and
// carries each one through the owner's confirm or skip decision.
package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/sieve/internal/candidate"
	"github.com/hpungsan/sieve/internal/logging"
	"github.com/hpungsan/sieve/internal/metrics"
	"github.com/hpungsan/sieve/internal/telegram"
	"github.com/hpungsan/sieve/internal/vars"
)

// DefaultRawTextMaxChars caps stored message text.
const DefaultRawTextMaxChars = 2000

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, buttons [][]telegram.Button) (telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Tracker creates tasks in the external task tracker.
type Tracker interface {
	CreateTask(ctx context.Context, content, description, dueString string) (string, error)
}

// Deps are the collaborators an Engine drives. Tracker may be nil, in which
// case confirm reports CONFIGURATION_MISSING.
type Deps struct {
	Store     *candidate.Store
	Flusher   *candidate.Flusher
	Vars      vars.Store
	Messenger Messenger
	Tracker   Tracker
	Logger    *logging.Logger

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Options tune intake.
type Options struct {
	// Location is the zone for due-date extraction and display.
	Location *time.Location

	// RawTextMaxChars caps raw_text in runes. Zero uses DefaultRawTextMaxChars.
	RawTextMaxChars int

	// Monitored filters source chats. Nil accepts every chat.
	Monitored func(chatID int64) bool
}

// Engine is the approval workflow. It expects one dispatcher goroutine;
// the store guards make concurrent Resolve calls safe as well.
type Engine struct {
	store     *candidate.Store
	flusher   *candidate.Flusher
	vars      vars.Store
	messenger Messenger
	tracker   Tracker
	logger    *logging.Logger
	metrics   *metrics.Metrics

	loc       *time.Location
	rawMax    int
	monitored func(int64) bool
	now       func() time.Time

	mu       sync.RWMutex
	bindings Bindings
}

// NewEngine wires an Engine.
func NewEngine(deps Deps, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RawTextMaxChars <= 0 {
		opts.RawTextMaxChars = DefaultRawTextMaxChars
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:     deps.Store,
		flusher:   deps.Flusher,
		vars:      deps.Vars,
		messenger: deps.Messenger,
		tracker:   deps.Tracker,
		logger:    logger.Named("workflow"),
		metrics:   deps.Metrics,
		loc:       opts.Location,
		rawMax:    opts.RawTextMaxChars,
		monitored: opts.Monitored,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Store returns the candidate store.
func (e *Engine) Store() *candidate.Store {
	return e.store
}

// Metrics returns the engine's metrics, nil when disabled.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// Location returns the display zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Flush offers the flusher an opportunity to write. Failures are logged
// and leave the store dirty for the next opportunity.
func (e *Engine) Flush(ctx context.Context, forced bool) {
	if e.flusher == nil {
		return
	}
	wrote, err := e.flusher.MaybeFlush(ctx, forced)
	if err != nil {
		e.metrics.ObserveFlush(err)
		e.logger.Warn(ctx, "flush failed", zap.Error(err), zap.Bool("forced", forced))
		return
	}
	if wrote {
		e.metrics.ObserveFlush(nil)
		e.metrics.SetCandidates(e.store.Counts())
		e.logger.Debug(ctx, "flushed candidates", zap.Bool("forced", forced), zap.Int("count", e.store.Len()))
	}
}

// LastFlush returns the time of the last successful flush, zero if none.
func (e *Engine) LastFlush() time.Time {
	if e.flusher == nil {
		return time.Time{}
	}
	return e.flusher.LastFlush()
}
