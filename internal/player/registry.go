package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrProfileFetch is returned when a profile lookup fails; the cached
// player keeps its previous state.
var ErrProfileFetch = errors.New("profile fetch failed")

// ProfileClient is the external player-identity lookup collaborator.
type ProfileClient interface {
	FetchProfile(ctx context.Context, id string) (Profile, error)
}

// Registry is the process-wide player cache. Entries are shared by id so
// repeated references resolve to one fetch, and expire after the
// configured TTL so long-running bridges do not accumulate every player
// id they ever saw.
type Registry struct {
	client ProfileClient
	ttl    time.Duration
	log    *zerolog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	player  *Player
	expires time.Time
}

// NewRegistry builds a player cache with the given TTL. A TTL of zero
// disables expiry.
func NewRegistry(client ProfileClient, ttl time.Duration, logger *zerolog.Logger) *Registry {
	return &Registry{
		client: client,
		ttl:    ttl,
		log:    logger,
		cache:  make(map[string]*cacheEntry),
	}
}

// Get returns the cached player for id, creating a partial one when
// absent. It never fails.
func (r *Registry) Get(id string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.cache[id]; ok {
		e.expires = r.deadline()
		return e.player
	}
	p := newPlayer(id)
	r.cache[id] = &cacheEntry{player: p, expires: r.deadline()}
	return p
}

// Fetch performs the external profile lookup for id. On success all
// profile fields are populated atomically and the player is no longer
// partial; on failure the cached player is untouched.
func (r *Registry) Fetch(ctx context.Context, id string) (*Player, error) {
	p := r.Get(id)

	prof, err := r.client.FetchProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProfileFetch, id, err)
	}

	p.complete(prof)
	return p, nil
}

// Len returns the number of cached players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Run sweeps expired entries until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, e := range r.cache {
		if now.After(e.expires) {
			delete(r.cache, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Debug().Int("removed", removed).Int("remaining", len(r.cache)).Msg("player cache sweep")
	}
}

func (r *Registry) deadline() time.Time {
	if r.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(r.ttl)
}
