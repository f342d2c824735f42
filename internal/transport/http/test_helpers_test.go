package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/auth"
	"github.com/rtcomm/bridge-server/internal/core"
	"github.com/rtcomm/bridge-server/internal/player"
	"github.com/rtcomm/bridge-server/internal/relay"
	"github.com/rtcomm/bridge-server/internal/session"
)

const testServerKey = "bridge-key"

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	messages []string
}

func (f *fakePublisher) Publish(_ context.Context, topic, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakePublisher) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("nothing was published")
	}
	return f.messages[len(f.messages)-1]
}

type testBridge struct {
	engine   *gin.Engine
	registry *core.Registry
	sessions *session.Store
	pub      *fakePublisher
}

// newTestBridge wires a full bridge instance around a fake publisher.
func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	logger := zerolog.Nop()

	players := player.NewRegistry(nil, 0, &logger)
	registry := core.NewRegistry(players, &logger)
	sessions := session.NewStore(time.Hour)
	sessions.SetLiveness(func(assignedID string) bool {
		_, ok := registry.LookupByID(assignedID)
		return ok
	})
	tokens := &session.TokenConfig{
		Secret:   []byte(testServerKey),
		Issuer:   "bridge-server",
		Audience: "game-servers",
		TTL:      time.Hour,
	}
	pub := &fakePublisher{}
	router := relay.NewRouter(registry, sessions, pub, testServerKey, &logger)
	registry.SetSender(router)
	authn := auth.New(testServerKey, registry, sessions, tokens, &logger)
	handlers := NewHandlers(registry, sessions, tokens, authn, router, &logger)

	return &testBridge{
		engine:   NewRouter(handlers, &logger),
		registry: registry,
		sessions: sessions,
		pub:      pub,
	}
}

type registered struct {
	Secret  string
	ID      string
	Session string
	JobID   string
	PlaceID string
}

// connect registers a game server and returns its credentials.
func (b *testBridge) connect(t *testing.T, jobID, placeID string) registered {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/connect", nil)
	req.Header.Set(HeaderAPIKey, testServerKey)
	req.Header.Set(HeaderJobID, jobID)
	req.Header.Set(HeaderPlaceID, placeID)
	b.engine.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("connect returned %d: %s", w.Code, w.Body.String())
	}
	var res ConnectResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode connect response: %v", err)
	}
	token := w.Header().Get(HeaderSession)
	if token == "" {
		t.Fatal("connect response missing session token header")
	}
	return registered{Secret: res.Secret, ID: res.ID, Session: token, JobID: jobID, PlaceID: placeID}
}

// relayRequest performs a signed relay POST using the given credentials.
func (b *testBridge) relayRequest(t *testing.T, reg registered, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set(HeaderAPIKey, testServerKey)
	req.Header.Set(HeaderJobID, reg.JobID)
	req.Header.Set(HeaderPlaceID, reg.PlaceID)
	req.Header.Set(HeaderSession, reg.Session)
	if len(body) > 0 {
		req.Header.Set(HeaderSignature, auth.Sign(body, auth.DeriveKey(reg.Secret, reg.PlaceID, reg.JobID)))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	b.engine.ServeHTTP(w, req)
	return w
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
