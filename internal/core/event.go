package core

import (
	"encoding/json"
	"sync"

	"github.com/rtcomm/bridge-server/internal/player"
)

type eventKind int

const (
	// eventMessage carries an inbound data payload for the connection.
	eventMessage eventKind = iota
	// eventPresence carries a wholesale replacement of the player set.
	eventPresence
	// eventClose tears down the connection's event stream.
	eventClose
)

// event travels over a connection's ordered single-consumer stream.
type event struct {
	kind    eventKind
	payload json.RawMessage
	players []string
}

// MessageFunc handles an inbound data payload.
type MessageFunc func(data json.RawMessage)

// CloseFunc handles connection teardown.
type CloseFunc func()

// PlayerFunc handles a player joining or leaving the remote server.
type PlayerFunc func(p *player.Player)

// listeners is an ordered multi-subscriber list. Callbacks run
// synchronously in list order; prepend inserts at the head.
type listeners[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id   int
	once bool
	fn   func(T)
}

// add appends (or prepends) a callback and returns a cancel func that
// removes at most the one registration it belongs to.
func (l *listeners[T]) add(fn func(T), prepend, once bool) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	e := listenerEntry[T]{id: l.nextID, once: once, fn: fn}
	if prepend {
		l.entries = append([]listenerEntry[T]{e}, l.entries...)
	} else {
		l.entries = append(l.entries, e)
	}

	id := e.id
	return func() { l.remove(id) }
}

func (l *listeners[T]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// emit invokes every registered callback in order. One-shot listeners are
// removed before their callback runs.
func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.entries))
	kept := l.entries[:0]
	for _, e := range l.entries {
		fns = append(fns, e.fn)
		if !e.once {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
