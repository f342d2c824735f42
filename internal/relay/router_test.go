package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/rtcomm/bridge-server/internal/core"
	"github.com/rtcomm/bridge-server/internal/player"
	"github.com/rtcomm/bridge-server/internal/push"
	"github.com/rtcomm/bridge-server/internal/session"
)

type fakePublisher struct {
	topics   []string
	messages []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, topic, message string) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, message)
	return nil
}

type fixture struct {
	router   *Router
	registry *core.Registry
	sessions *session.Store
	pub      *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	players := player.NewRegistry(nil, 0, &logger)
	registry := core.NewRegistry(players, &logger)
	sessions := session.NewStore(time.Hour)
	pub := &fakePublisher{}
	router := NewRouter(registry, sessions, pub, "server-key", &logger)
	registry.SetSender(router)
	return &fixture{router: router, registry: registry, sessions: sessions, pub: pub}
}

func (f *fixture) lastMessage(t *testing.T) string {
	t.Helper()
	if len(f.pub.messages) == 0 {
		t.Fatal("nothing was published")
	}
	return f.pub.messages[len(f.pub.messages)-1]
}

func TestSendStripsAPIKey(t *testing.T) {
	f := newFixture(t)

	err := f.router.Send(context.Background(), json.RawMessage(`{"ApiKey":"x","foo":1}`), SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := f.lastMessage(t)
	if gjson.Get(msg, "data.ApiKey").Exists() {
		t.Fatalf("forwarded payload still contains ApiKey: %s", msg)
	}
	if gjson.Get(msg, "data.foo").Int() != 1 {
		t.Fatalf("payload field lost: %s", msg)
	}
}

func TestSendEnvelopeFilters(t *testing.T) {
	f := newFixture(t)

	if err := f.router.Send(context.Background(), json.RawMessage(`{"a":1}`), SendOptions{JobID: "job-1", PlaceID: "42"}); err != nil {
		t.Fatalf("targeted send: %v", err)
	}
	msg := f.lastMessage(t)
	if gjson.Get(msg, "ServerJobId").String() != "job-1" || gjson.Get(msg, "ServerPlaceId").String() != "42" {
		t.Fatalf("missing identity filters: %s", msg)
	}
	if f.pub.topics[len(f.pub.topics)-1] != push.TopicData {
		t.Fatalf("published on wrong topic %q", f.pub.topics[len(f.pub.topics)-1])
	}

	// Broadcast omits the filters entirely.
	if err := f.router.Send(context.Background(), json.RawMessage(`{"a":1}`), SendOptions{}); err != nil {
		t.Fatalf("broadcast send: %v", err)
	}
	msg = f.lastMessage(t)
	if gjson.Get(msg, "ServerJobId").Exists() || gjson.Get(msg, "ServerPlaceId").Exists() {
		t.Fatalf("broadcast must not carry filters: %s", msg)
	}
}

func TestSendPropagatesPublisherErrors(t *testing.T) {
	f := newFixture(t)
	f.pub.err = push.ErrUpstream

	err := f.router.Send(context.Background(), json.RawMessage(`{}`), SendOptions{})
	if !errors.Is(err, push.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestBroadcastAPIKey(t *testing.T) {
	f := newFixture(t)

	if err := f.router.BroadcastAPIKey(context.Background()); err != nil {
		t.Fatalf("broadcast key: %v", err)
	}
	msg := f.lastMessage(t)
	if gjson.Get(msg, "ApiKey").String() != "server-key" {
		t.Fatalf("key message malformed: %s", msg)
	}
}

func TestInboundPresenceParsesPlayers(t *testing.T) {
	f := newFixture(t)
	conn, err := f.registry.Register("job-1", "42", "s1", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	added := make(chan string, 4)
	conn.OnPlayerAdded(func(p *player.Player) { added <- p.ID })

	if err := f.router.InboundPresence(conn, []byte(`{"players":["100",200]}`)); err != nil {
		t.Fatalf("presence: %v", err)
	}
	got := map[string]bool{}
	got[recv(t, added)] = true
	got[recv(t, added)] = true
	if !got["100"] || !got["200"] {
		t.Fatalf("unexpected added players: %v", got)
	}
}

func TestInboundPresenceRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	conn, err := f.registry.Register("job-1", "42", "s1", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, payload := range []string{`{}`, `{"players":"nope"}`, `[]`} {
		if err := f.router.InboundPresence(conn, []byte(payload)); !errors.Is(err, core.ErrBadRequest) {
			t.Fatalf("payload %s: expected ErrBadRequest, got %v", payload, err)
		}
	}
}

func TestInboundCloseTearsDownBinding(t *testing.T) {
	f := newFixture(t)

	sessionID := session.NewSessionID()
	conn, err := f.registry.Register("job-1", "42", sessionID, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	f.sessions.Bind(sessionID, "job-1", "42", conn.ID)

	closed := make(chan struct{}, 1)
	conn.OnClose(func() { closed <- struct{}{} })

	if err := f.router.InboundClose(conn); err != nil {
		t.Fatalf("close: %v", err)
	}
	recv(t, closed)

	if _, ok := f.registry.LookupByID(conn.ID); ok {
		t.Fatal("connection still registered after close")
	}
	if _, err := f.sessions.Get(sessionID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("binding survived close: %v", err)
	}

	if err := f.router.InboundClose(conn); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second close: expected ErrNotFound, got %v", err)
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		panic("unreachable")
	}
}
