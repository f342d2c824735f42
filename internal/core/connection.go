package core

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rtcomm/bridge-server/internal/player"
)

// eventBuffer bounds how many undelivered events a connection may hold.
const eventBuffer = 64

// Sender pushes a payload to the remote server identified by job/place id.
// Implemented by the relay router; injected so core stays transport-free.
type Sender interface {
	SendTo(ctx context.Context, data json.RawMessage, jobID, placeID string) error
}

// Connection represents one remote game-server process currently
// registered with the bridge.
type Connection struct {
	// JobID is the game.JobId of the connected server, unique among
	// active connections.
	JobID string
	// PlaceID is the game.PlaceId of the connected server.
	PlaceID string
	// ID is the bridge-assigned short identifier used in relay URLs.
	ID string
	// Secret is the per-connection HMAC key material. It is returned
	// once in the registration response and never logged.
	Secret string
	// SessionID is the transport session that performed registration.
	SessionID string

	playerReg *player.Registry
	sender    Sender

	mu         sync.Mutex
	players    []*player.Player
	customData any

	streamMu sync.Mutex
	closed   bool
	events   chan event

	msgSubs      listeners[json.RawMessage]
	closeSubs    listeners[struct{}]
	addedSubs    listeners[*player.Player]
	removingSubs listeners[*player.Player]
}

func newConnection(jobID, placeID, id, secret, sessionID string, playerReg *player.Registry, sender Sender) *Connection {
	return &Connection{
		JobID:     jobID,
		PlaceID:   placeID,
		ID:        id,
		Secret:    secret,
		SessionID: sessionID,
		playerReg: playerReg,
		sender:    sender,
		events:    make(chan event, eventBuffer),
	}
}

// run drains the connection's event stream in arrival order. It is the
// single consumer; it exits after delivering the close event.
func (c *Connection) run() {
	for ev := range c.events {
		switch ev.kind {
		case eventMessage:
			c.msgSubs.emit(ev.payload)
		case eventPresence:
			c.applyPresence(ev.players)
		case eventClose:
			c.closeSubs.emit(struct{}{})
			return
		}
	}
}

func (c *Connection) enqueue(ev event) error {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.closed {
		return ErrNotFound
	}
	c.events <- ev
	return nil
}

// shutdown delivers the close event after all pending events and stops
// the dispatcher. Safe to call more than once.
func (c *Connection) shutdown() {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.events <- event{kind: eventClose}
	close(c.events)
}

// Deliver routes an inbound data payload to the connection's message
// listeners, preserving arrival order.
func (c *Connection) Deliver(payload json.RawMessage) error {
	return c.enqueue(event{kind: eventMessage, payload: payload})
}

// UpdatePresence replaces the reported player set. Added and removing
// listeners fire before the stored set is swapped.
func (c *Connection) UpdatePresence(playerIDs []string) error {
	return c.enqueue(event{kind: eventPresence, players: playerIDs})
}

func (c *Connection) applyPresence(ids []string) {
	c.mu.Lock()
	current := make(map[string]*player.Player, len(c.players))
	for _, p := range c.players {
		current[p.ID] = p
	}

	next := make([]*player.Player, 0, len(ids))
	var added []*player.Player
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := current[id]; ok {
			next = append(next, p)
			continue
		}
		p := c.playerReg.Get(id)
		next = append(next, p)
		added = append(added, p)
	}

	var removing []*player.Player
	for _, p := range c.players {
		if _, ok := seen[p.ID]; !ok {
			removing = append(removing, p)
		}
	}
	c.mu.Unlock()

	// Listeners observing a removal must still see the pre-update set.
	for _, p := range added {
		c.addedSubs.emit(p)
	}
	for _, p := range removing {
		c.removingSubs.emit(p)
	}

	c.mu.Lock()
	c.players = next
	c.mu.Unlock()
}

// Players returns the players currently reported present by the remote
// server.
func (c *Connection) Players() []*player.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*player.Player, len(c.players))
	copy(out, c.players)
	return out
}

// HasPlayer reports whether the given player id is currently present.
func (c *Connection) HasPlayer(playerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// CustomData returns the opaque value attached by the owning application.
func (c *Connection) CustomData() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customData
}

// SetCustomData attaches an opaque value to the connection.
func (c *Connection) SetCustomData(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customData = v
}

// Send pushes data to the remote server represented by this connection.
// The job and place filters are filled in for the caller.
func (c *Connection) Send(ctx context.Context, data json.RawMessage) error {
	if c.sender == nil {
		return ErrNoSender
	}
	return c.sender.SendTo(ctx, data, c.JobID, c.PlaceID)
}

// OnMessage registers a listener for inbound data payloads. The returned
// func removes that one registration.
func (c *Connection) OnMessage(fn MessageFunc) func() {
	return c.msgSubs.add(fn, false, false)
}

// OnceMessage registers a one-shot message listener.
func (c *Connection) OnceMessage(fn MessageFunc) func() {
	return c.msgSubs.add(fn, false, true)
}

// PrependMessage registers a message listener ahead of existing ones.
func (c *Connection) PrependMessage(fn MessageFunc) func() {
	return c.msgSubs.add(fn, true, false)
}

// PrependOnceMessage registers a one-shot message listener ahead of
// existing ones.
func (c *Connection) PrependOnceMessage(fn MessageFunc) func() {
	return c.msgSubs.add(fn, true, true)
}

// OnClose registers a listener for connection teardown.
func (c *Connection) OnClose(fn CloseFunc) func() {
	return c.closeSubs.add(func(struct{}) { fn() }, false, false)
}

// OnceClose registers a one-shot close listener.
func (c *Connection) OnceClose(fn CloseFunc) func() {
	return c.closeSubs.add(func(struct{}) { fn() }, false, true)
}

// PrependClose registers a close listener ahead of existing ones.
func (c *Connection) PrependClose(fn CloseFunc) func() {
	return c.closeSubs.add(func(struct{}) { fn() }, true, false)
}

// PrependOnceClose registers a one-shot close listener ahead of existing
// ones.
func (c *Connection) PrependOnceClose(fn CloseFunc) func() {
	return c.closeSubs.add(func(struct{}) { fn() }, true, true)
}

// OnPlayerAdded registers a listener for players newly reported present.
func (c *Connection) OnPlayerAdded(fn PlayerFunc) func() {
	return c.addedSubs.add(fn, false, false)
}

// OncePlayerAdded registers a one-shot player-added listener.
func (c *Connection) OncePlayerAdded(fn PlayerFunc) func() {
	return c.addedSubs.add(fn, false, true)
}

// PrependPlayerAdded registers a player-added listener ahead of existing
// ones.
func (c *Connection) PrependPlayerAdded(fn PlayerFunc) func() {
	return c.addedSubs.add(fn, true, false)
}

// PrependOncePlayerAdded registers a one-shot player-added listener ahead
// of existing ones.
func (c *Connection) PrependOncePlayerAdded(fn PlayerFunc) func() {
	return c.addedSubs.add(fn, true, true)
}

// OnPlayerRemoving registers a listener for players no longer present.
func (c *Connection) OnPlayerRemoving(fn PlayerFunc) func() {
	return c.removingSubs.add(fn, false, false)
}

// OncePlayerRemoving registers a one-shot player-removing listener.
func (c *Connection) OncePlayerRemoving(fn PlayerFunc) func() {
	return c.removingSubs.add(fn, false, true)
}

// PrependPlayerRemoving registers a player-removing listener ahead of
// existing ones.
func (c *Connection) PrependPlayerRemoving(fn PlayerFunc) func() {
	return c.removingSubs.add(fn, true, false)
}

// PrependOncePlayerRemoving registers a one-shot player-removing listener
// ahead of existing ones.
func (c *Connection) PrependOncePlayerRemoving(fn PlayerFunc) func() {
	return c.removingSubs.add(fn, true, true)
}
