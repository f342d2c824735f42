package player

import (
	"fmt"
	"sync"
	"time"
)

// Player is a cached profile record for a remote-reported player id. It
// starts partial (only the id known) and becomes complete once a profile
// fetch succeeds.
type Player struct {
	// ID is the player's user id as a numeric string.
	ID string

	mu      sync.Mutex
	profile Profile
	partial bool
}

// Profile holds the fields populated by a profile fetch.
type Profile struct {
	Name        string
	DisplayName string
	Description string
	Created     time.Time
	Banned      bool
}

func newPlayer(id string) *Player {
	return &Player{ID: id, partial: true}
}

// Partial reports whether the profile fields have not yet been fetched.
func (p *Player) Partial() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.partial
}

// Profile returns the fetched profile fields. The zero value is returned
// while the player is partial.
func (p *Player) Profile() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

// complete swaps in a fully-populated profile. Fields are never applied
// piecemeal; a failed fetch leaves the player in its previous state.
func (p *Player) complete(prof Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = prof
	p.partial = false
}

// FormattedName returns "DisplayName (@Name)", or "@Name" when the two
// are equal. Empty until the profile has been fetched.
func (p *Player) FormattedName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.partial || p.profile.Name == "" {
		return ""
	}
	if p.profile.Name == p.profile.DisplayName {
		return fmt.Sprintf("@%s", p.profile.Name)
	}
	return fmt.Sprintf("%s (@%s)", p.profile.DisplayName, p.profile.Name)
}
