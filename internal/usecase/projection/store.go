package projection

import (
	"slices"
	"sync"

	"maestro-console/internal/domain"
)

// Token identifies the session allowed to commit. Zero is never issued.
type Token uint64

// Update describes one committed change, delivered to subscribers in commit order.
type Update struct {
	Seq         uint64
	Token       Token
	Projection  domain.Projection
	Appended    []domain.LogEntry
	LogsCleared bool
}

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	Seq        uint64            `json:"seq"`
	Projection domain.Projection `json:"projection"`
	Logs       []domain.LogEntry `json:"logs"`
}

// StoreStats counts store activity.
type StoreStats struct {
	Commits   uint64 `json:"commits"`   // accepted, non-empty commits
	Discarded uint64 `json:"discarded"` // commits rejected for a stale token
	Entries   uint64 `json:"entries"`   // log entries appended over the store's lifetime
}

type subscriber struct {
	id uint64
	fn func(Update)
}

// Store holds the live projection and the append-only log. Every write goes
// through Commit, which checks the session token and applies the whole delta
// as one projection update plus one log append.
type Store struct {
	mu      sync.Mutex
	proj    domain.Projection
	logs    []domain.LogEntry
	current Token
	issued  Token
	seq     uint64
	stats   StoreStats

	// notifyMu is taken before mu is released so subscribers observe commits
	// in Seq order. Subscribers must not call Commit.
	notifyMu sync.Mutex
	subsMu   sync.RWMutex
	subs     []subscriber
	nextSub  uint64
}

// NewStore creates a store holding initial.
func NewStore(initial domain.Projection) *Store {
	return &Store{proj: initial}
}

// Begin issues a new token and makes it current, invalidating every earlier one.
func (s *Store) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.current = s.issued
	return s.current
}

// Current returns the token allowed to commit.
func (s *Store) Current() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Commit applies d if tok is current. It reports false when the commit was
// discarded for a stale token. An empty delta changes nothing and notifies no one.
func (s *Store) Commit(tok Token, d domain.Delta) bool {
	s.mu.Lock()
	if tok != s.current {
		s.stats.Discarded++
		s.mu.Unlock()
		return false
	}
	if d.Empty() {
		s.mu.Unlock()
		return true
	}

	s.proj = s.proj.Apply(d)
	if len(d.Entries) > 0 {
		s.logs = append(s.logs, d.Entries...)
		s.stats.Entries += uint64(len(d.Entries))
	}
	s.seq++
	s.stats.Commits++
	u := Update{
		Seq:        s.seq,
		Token:      tok,
		Projection: cloneProjection(s.proj),
		Appended:   slices.Clone(d.Entries),
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notify(u)
	s.notifyMu.Unlock()
	return true
}

// ClearLogs empties the log without touching the projection.
func (s *Store) ClearLogs() {
	s.mu.Lock()
	s.logs = nil
	s.seq++
	u := Update{Seq: s.seq, Token: s.current, Projection: cloneProjection(s.proj), LogsCleared: true}
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notify(u)
	s.notifyMu.Unlock()
}

// Snapshot returns a copy of the projection and log.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Seq:        s.seq,
		Projection: cloneProjection(s.proj),
		Logs:       slices.Clone(s.logs),
	}
}

// Projection returns a copy of the live projection.
func (s *Store) Projection() domain.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProjection(s.proj)
}

// Stats returns activity counters.
func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe registers fn for every subsequent commit. Returns an unsubscribe function.
func (s *Store) Subscribe(fn func(Update)) func() {
	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(u Update) {
	s.subsMu.RLock()
	subs := slices.Clone(s.subs)
	s.subsMu.RUnlock()
	for _, sub := range subs {
		sub.fn(u)
	}
}

func cloneProjection(p domain.Projection) domain.Projection {
	if p.Reasoning != nil {
		r := *p.Reasoning
		p.Reasoning = &r
	}
	return p
}
