package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeProfileClient struct {
	profile Profile
	err     error
	calls   int
}

func (f *fakeProfileClient) FetchProfile(_ context.Context, _ string) (Profile, error) {
	f.calls++
	if f.err != nil {
		return Profile{}, f.err
	}
	return f.profile, nil
}

func newTestRegistry(client ProfileClient, ttl time.Duration) *Registry {
	logger := zerolog.Nop()
	return NewRegistry(client, ttl, &logger)
}

func TestGetCachesPartialPlayers(t *testing.T) {
	r := newTestRegistry(nil, 0)

	p1 := r.Get("156")
	p2 := r.Get("156")
	if p1 != p2 {
		t.Fatal("repeated Get must return the shared cached player")
	}
	if !p1.Partial() {
		t.Fatal("unfetched player must be partial")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 cached player, got %d", r.Len())
	}
}

func TestFetchPopulatesAllFields(t *testing.T) {
	created := time.Date(2006, 2, 27, 0, 0, 0, 0, time.UTC)
	client := &fakeProfileClient{profile: Profile{
		Name:        "builderman",
		DisplayName: "Builderman",
		Description: "hello",
		Created:     created,
		Banned:      false,
	}}
	r := newTestRegistry(client, 0)

	p, err := r.Fetch(context.Background(), "156")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Partial() {
		t.Fatal("player still partial after successful fetch")
	}
	prof := p.Profile()
	if prof.Name != "builderman" || prof.DisplayName != "Builderman" || !prof.Created.Equal(created) {
		t.Fatalf("unexpected profile: %+v", prof)
	}

	// The fetched player is the same cached object Get returns.
	if r.Get("156") != p {
		t.Fatal("fetch bypassed the cache")
	}
}

func TestFetchFailureLeavesPlayerUntouched(t *testing.T) {
	client := &fakeProfileClient{err: errors.New("boom")}
	r := newTestRegistry(client, 0)

	before := r.Get("156")
	_, err := r.Fetch(context.Background(), "156")
	if !errors.Is(err, ErrProfileFetch) {
		t.Fatalf("expected ErrProfileFetch, got %v", err)
	}
	if !before.Partial() {
		t.Fatal("failed fetch must leave the player partial")
	}

	// A later successful fetch completes the same cached player.
	client.err = nil
	client.profile = Profile{Name: "x", DisplayName: "x"}
	p, err := r.Fetch(context.Background(), "156")
	if err != nil {
		t.Fatalf("retry fetch: %v", err)
	}
	if p != before || p.Partial() {
		t.Fatal("retry did not complete the cached player")
	}
}

func TestFormattedName(t *testing.T) {
	p := newPlayer("1")
	if got := p.FormattedName(); got != "" {
		t.Fatalf("partial player formatted name must be empty, got %q", got)
	}

	p.complete(Profile{Name: "builderman", DisplayName: "builderman"})
	if got := p.FormattedName(); got != "@builderman" {
		t.Fatalf("expected @builderman, got %q", got)
	}

	p.complete(Profile{Name: "builderman", DisplayName: "Builder Man"})
	if got := p.FormattedName(); got != "Builder Man (@builderman)" {
		t.Fatalf("unexpected formatted name %q", got)
	}
}

func TestSweepEvictsExpiredEntries(t *testing.T) {
	r := newTestRegistry(nil, time.Minute)

	r.Get("1")
	r.Get("2")

	r.mu.Lock()
	r.cache["1"].expires = time.Now().Add(-time.Second)
	r.mu.Unlock()

	r.sweep(time.Now())
	if r.Len() != 1 {
		t.Fatalf("expected 1 cached player after sweep, got %d", r.Len())
	}
	if _, ok := r.cache["2"]; !ok {
		t.Fatal("unexpired entry was evicted")
	}
}
