package core

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/player"
)

// maxAssignedIDLen bounds the length of a bridge-assigned connection id.
const maxAssignedIDLen = 8

// IDFactory produces a candidate assigned id for a new connection.
type IDFactory func() string

// Registry owns all active connections. Registration and close are the
// only writers; the authenticator and relay router are readers.
//
// Invariants: assigned ids are unique registry-wide; at most one active
// connection exists per job id (the job id becomes reusable after close).
type Registry struct {
	playerReg *player.Registry
	log       *zerolog.Logger

	mu       sync.RWMutex
	byJob    map[string]*Connection
	byID     map[string]*Connection
	sender   Sender
	connSubs listeners[*Connection]
}

// NewRegistry builds an empty connection registry.
func NewRegistry(playerReg *player.Registry, logger *zerolog.Logger) *Registry {
	return &Registry{
		playerReg: playerReg,
		log:       logger,
		byJob:     make(map[string]*Connection),
		byID:      make(map[string]*Connection),
	}
}

// SetSender wires the outbound path used by Connection.Send. Called once
// at composition time, before any registration.
func (r *Registry) SetSender(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// OnConnection registers a listener fired on each successful
// registration. The returned func removes the registration.
func (r *Registry) OnConnection(fn func(*Connection)) func() {
	return r.connSubs.add(fn, false, false)
}

// Register creates a connection for the given job and place identity.
// It fails with ErrConflict while the job id already has an active
// connection. A nil idFactory assigns the current registry size as a
// decimal string.
func (r *Registry) Register(jobID, placeID, sessionID string, idFactory IDFactory) (*Connection, error) {
	r.mu.Lock()
	if _, active := r.byJob[jobID]; active {
		r.mu.Unlock()
		return nil, ErrConflict
	}

	var id string
	if idFactory == nil {
		// Default to the registry size, probing upward when an earlier
		// close left a gap that makes the size collide.
		for n := len(r.byID); ; n++ {
			cand := strconv.Itoa(n)
			if _, taken := r.byID[cand]; !taken {
				id = cand
				break
			}
		}
	} else {
		id = strings.TrimSpace(idFactory())
		if len(id) > maxAssignedIDLen {
			id = id[:maxAssignedIDLen]
		}
		if _, taken := r.byID[id]; taken || id == "" {
			r.mu.Unlock()
			return nil, ErrConflict
		}
	}

	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	conn := newConnection(jobID, placeID, id, secret, sessionID, r.playerReg, r.sender)
	r.byJob[jobID] = conn
	r.byID[id] = conn
	r.mu.Unlock()

	go conn.run()

	r.log.Info().
		Str("job_id", jobID).
		Str("place_id", placeID).
		Str("assigned_id", id).
		Msg("connection registered")

	r.connSubs.emit(conn)
	return conn, nil
}

// LookupByJob returns the active connection for a job id, if any.
func (r *Registry) LookupByJob(jobID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byJob[jobID]
	return c, ok
}

// LookupByID returns the connection for a bridge-assigned id, if any.
func (r *Registry) LookupByID(assignedID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[assignedID]
	return c, ok
}

// FindByPlayer returns the first active connection whose remote server
// reports the given player present. Linear over connections and their
// player sets; acceptable because the working set is live game servers.
func (r *Registry) FindByPlayer(playerID string) (*Connection, bool) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if c.HasPlayer(playerID) {
			return c, true
		}
	}
	return nil, false
}

// Close removes the connection for a job id and delivers its close event
// after any pending events. Closing an absent job id returns ErrNotFound
// and changes nothing.
func (r *Registry) Close(jobID string) error {
	r.mu.Lock()
	conn, ok := r.byJob[jobID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.byJob, jobID)
	delete(r.byID, conn.ID)
	r.mu.Unlock()

	conn.shutdown()

	r.log.Info().
		Str("job_id", jobID).
		Str("assigned_id", conn.ID).
		Msg("connection closed")
	return nil
}

// Len returns the number of active connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns the active connections in no particular order.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}
