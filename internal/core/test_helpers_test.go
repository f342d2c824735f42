package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/player"
)

// newTestRegistry builds a registry with a player cache that never
// fetches profiles.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := zerolog.Nop()
	players := player.NewRegistry(nil, 0, &logger)
	return NewRegistry(players, &logger)
}

// mustRecv waits for one value on ch or fails the test.
func mustRecv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		panic("unreachable")
	}
}

// mustNotRecv asserts ch stays quiet for a short window.
func mustNotRecv[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
