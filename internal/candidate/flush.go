package candidate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryVariable is the variable holding the serialized store.
const MemoryVariable = "MEMORY_JSON"

// DefaultFlushInterval is the minimum gap between non-forced flushes.
const DefaultFlushInterval = 20 * time.Second

// VariableSetter writes one named variable to the external store.
type VariableSetter interface {
	Set(ctx context.Context, name, value string) error
}

// Flusher decides when the store is written out. A flush replaces the whole
// snapshot; there is no log, so the last successful writer wins.
type Flusher struct {
	store    *Store
	vars     VariableSetter
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastFlush time.Time
}

// NewFlusher creates a Flusher writing store to vars under MemoryVariable.
func NewFlusher(store *Store, vars VariableSetter, interval time.Duration) *Flusher {
	return &Flusher{
		store:    store,
		vars:     vars,
		interval: interval,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (f *Flusher) SetClock(now func() time.Time) {
	f.now = now
}

// MaybeFlush writes the store unless the write is not forced and either
// nothing changed or the last successful flush is younger than the interval.
// A failed write leaves the store dirty and the in-memory state untouched,
// so the next call retries with whatever is current then.
func (f *Flusher) MaybeFlush(ctx context.Context, forced bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if !forced {
		if !f.store.Dirty() {
			return false, nil
		}
		if !f.lastFlush.IsZero() && now.Sub(f.lastFlush) < f.interval {
			return false, nil
		}
	}

	snap, rev := f.store.Snapshot(now)
	raw, err := snap.Encode()
	if err != nil {
		return false, err
	}
	if err := f.vars.Set(ctx, MemoryVariable, raw); err != nil {
		return false, fmt.Errorf("flush %s: %w", MemoryVariable, err)
	}

	f.store.markFlushed(rev)
	f.lastFlush = now
	return true, nil
}

// LastFlush returns the time of the last successful flush.
func (f *Flusher) LastFlush() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFlush
}
