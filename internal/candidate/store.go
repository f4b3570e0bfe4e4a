package candidate

import (
	"sync"

	"github.com/hpungsan/sieve/internal/errors"
)

// DefaultCapacity is the number of candidates kept before FIFO eviction.
const DefaultCapacity = 300

// Store is the bounded, insertion-ordered candidate ledger.
//
// One process owns a Store: it is seeded once from a snapshot and that
// process is its only writer. All mutation goes through Append and
// Transition. Methods are safe for concurrent use, and Claim gives a
// per-candidate guard so an external task is created at most once per
// process. Two processes sharing one snapshot still race (last flush wins).
type Store struct {
	mu       sync.RWMutex
	items    []Candidate
	capacity int

	// claimed holds candidates with an external call in flight.
	claimed map[string]bool

	// revision counts mutations; flushed is the revision last persisted.
	revision uint64
	flushed  uint64
}

// NewStore returns an empty store. A non-positive capacity uses DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		claimed:  make(map[string]bool),
	}
}

// Capacity returns the eviction bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Len returns the number of stored candidates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Append inserts c at the end and evicts the oldest unclaimed candidates
// until the store is back at capacity. It returns what was evicted.
func (s *Store) Append(c Candidate) []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, c)
	s.revision++

	var evicted []Candidate
	for i := 0; len(s.items) > s.capacity && i < len(s.items); {
		if s.claimed[s.items[i].ID] {
			i++
			continue
		}
		evicted = append(evicted, s.items[i])
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	return evicted
}

// Get returns the newest candidate with the given id.
func (s *Store) Get(id string) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Candidate{}, errors.NewNotFound(id)
	}
	return s.items[i], nil
}

// Claim marks a drafted candidate as having an external call in flight.
// It fails with ALREADY_HANDLED when the candidate is terminal or claimed.
func (s *Store) Claim(id string) (Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Candidate{}, errors.NewNotFound(id)
	}
	c := s.items[i]
	if c.Status != StatusDrafted {
		return Candidate{}, errors.NewAlreadyHandled(id, string(c.Status))
	}
	if s.claimed[id] {
		return Candidate{}, errors.NewAlreadyHandled(id, "in progress")
	}
	s.claimed[id] = true
	return c, nil
}

// Release drops a claim without changing the candidate.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, id)
}

// Transition moves a drafted candidate to created or skipped. externalTaskID
// is recorded only for created. Any claim on the candidate is released.
func (s *Store) Transition(id string, to Status, externalTaskID string) (Candidate, error) {
	if !to.Terminal() {
		return Candidate{}, errors.NewInvalidRequest("status must be one of: created, skipped")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Candidate{}, errors.NewNotFound(id)
	}
	c := &s.items[i]
	if c.Status != StatusDrafted {
		return Candidate{}, errors.NewAlreadyHandled(id, string(c.Status))
	}

	c.Status = to
	if to == StatusCreated {
		c.ExternalTaskID = externalTaskID
	}
	delete(s.claimed, id)
	s.revision++
	return *c, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Status Status // empty means any
	Limit  int    // 0 means no limit
}

// List returns candidates newest first.
func (s *Store) List(f ListFilter) []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Candidate, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		if f.Status != "" && s.items[i].Status != f.Status {
			continue
		}
		out = append(out, s.items[i])
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Counts returns the number of candidates per status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[Status]int{StatusDrafted: 0, StatusCreated: 0, StatusSkipped: 0}
	for _, c := range s.items {
		counts[c.Status]++
	}
	return counts
}

// Dirty reports whether there are mutations not yet flushed.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision != s.flushed
}

// markFlushed records that the state at rev has been persisted. Later
// mutations keep the store dirty.
func (s *Store) markFlushed(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.flushed {
		s.flushed = rev
	}
}

// indexOf scans newest to oldest so the newest duplicate governs.
// Callers hold s.mu.
func (s *Store) indexOf(id string) int {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
