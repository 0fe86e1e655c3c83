package services

import (
	"context"
	"errors"
	"nearby-guide/internal/models"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSuperseded is returned when a newer search in the same session started
// before this one finished. Its result has been discarded.
var ErrSuperseded = errors.New("search superseded by a newer one")

// Ticket identifies one search within a session.
type Ticket struct {
	SessionID  string
	Generation uint64
}

// Session tracks the address searches of one client. Only the most recently
// started search may publish its result.
type Session struct {
	ID string

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	last       *models.NearbyResponse
	lastQuery  string
	touched    time.Time
}

// Begin starts a new search, cancelling the one in flight. The returned context
// is cancelled when a later search begins; the caller must call cancel when done.
func (s *Session) Begin(parent context.Context) (Ticket, context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.touched = time.Now()
	return Ticket{SessionID: s.ID, Generation: s.generation}, ctx, cancel
}

// Current reports whether t is still the newest search.
func (s *Session) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Generation == s.generation
}

// Commit publishes resp as the session's result, unless t has been superseded.
func (s *Session) Commit(t Ticket, query string, resp models.NearbyResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Generation != s.generation {
		return ErrSuperseded
	}
	s.last = &resp
	s.lastQuery = query
	s.touched = time.Now()
	return nil
}

// Last returns the most recently committed result.
func (s *Session) Last() (models.NearbyResponse, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.NearbyResponse{}, "", false
	}
	return *s.last, s.lastQuery, true
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Sessions is the registry of live sessions. Sessions idle longer than the TTL
// are evicted by Sweep.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Session
	ttl   time.Duration
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{items: make(map[string]*Session), ttl: ttl}
}

// Get returns the session with id, creating it when unknown. An empty or
// malformed id gets a fresh session with a generated id.
func (r *Sessions) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	if s, ok := r.items[id]; ok {
		return s
	}
	s := &Session{ID: id, touched: time.Now()}
	r.items[id] = s
	return s
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep evicts idle sessions and returns how many were removed.
func (r *Sessions) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.items {
		if now.Sub(s.idleSince()) > r.ttl {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (r *Sessions) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
