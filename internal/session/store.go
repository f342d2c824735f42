// Package session manages the server-side bindings between a transport
// session and the connection it registered. A binding is created
// atomically with registration, consulted on every relay request, and
// destroyed on close.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no binding exists for a session id.
var ErrSessionNotFound = errors.New("session not found")

// Binding associates a transport session with the identity it registered.
type Binding struct {
	SessionID  string
	JobID      string
	PlaceID    string
	AssignedID string
	CreatedAt  time.Time
	LastSeen   time.Time
}

// Store is an in-memory session binding table with TTL expiry. Bindings
// must outlive their connection; every authenticated request refreshes
// the deadline, and the sweep never collects a binding whose connection
// is still registered.
type Store struct {
	ttl time.Duration

	mu       sync.RWMutex
	bindings map[string]*Binding
	live     func(assignedID string) bool
}

// NewStore builds an empty binding store. A TTL of zero disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		bindings: make(map[string]*Binding),
	}
}

// SetLiveness installs the check the sweep uses to tell idle bindings
// from orphaned ones. Wired after construction because the connection
// registry and the store reference each other's lifecycles.
func (s *Store) SetLiveness(live func(assignedID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// NewSessionID allocates a fresh transport session identifier. Separate
// from Bind so callers can reserve the id first and only bind it after
// registration succeeds.
func NewSessionID() string {
	return uuid.NewString()
}

// Bind records the identity registered under a session id.
func (s *Store) Bind(sessionID, jobID, placeID, assignedID string) *Binding {
	now := time.Now()
	b := &Binding{
		SessionID:  sessionID,
		JobID:      jobID,
		PlaceID:    placeID,
		AssignedID: assignedID,
		CreatedAt:  now,
		LastSeen:   now,
	}

	s.mu.Lock()
	s.bindings[b.SessionID] = b
	s.mu.Unlock()
	return b
}

// Get returns the binding for a session id and refreshes its deadline.
func (s *Store) Get(sessionID string) (*Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	b.LastSeen = time.Now()
	return b, nil
}

// Destroy removes the binding for a session id. Destroying an absent
// session is a no-op.
func (s *Store) Destroy(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, sessionID)
}

// Len returns the number of live bindings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

// Run sweeps stale bindings until ctx is cancelled. Separated from the
// constructor so tests can drive the store without a goroutine.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.bindings {
		if now.Sub(b.LastSeen) <= s.ttl {
			continue
		}
		if s.live != nil && s.live(b.AssignedID) {
			// Idle but still registered; the binding must stay valid
			// for as long as the connection does.
			b.LastSeen = now
			continue
		}
		delete(s.bindings, id)
	}
}
