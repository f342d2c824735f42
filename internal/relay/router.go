// Package relay routes validated inbound payloads to the matching
// connection's event stream and outbound sends through the push channel.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/rtcomm/bridge-server/internal/core"
	"github.com/rtcomm/bridge-server/internal/push"
	"github.com/rtcomm/bridge-server/internal/session"
)

// SendOptions optionally narrows an outbound send to one remote server.
// With both fields empty the message is broadcast to all servers.
type SendOptions struct {
	JobID   string
	PlaceID string
}

// envelope is the wire format published on the data topic. Remote
// servers ignore messages whose filters name a different server.
type envelope struct {
	Data          json.RawMessage `json:"data"`
	ServerJobID   string          `json:"ServerJobId,omitempty"`
	ServerPlaceID string          `json:"ServerPlaceId,omitempty"`
}

// Router is the relay between authenticated HTTP requests and the
// per-connection event streams, and the single outbound path.
type Router struct {
	registry  *core.Registry
	sessions  *session.Store
	publisher push.Publisher
	serverKey string
	log       *zerolog.Logger
}

// NewRouter builds the relay router.
func NewRouter(registry *core.Registry, sessions *session.Store, publisher push.Publisher, serverKey string, logger *zerolog.Logger) *Router {
	return &Router{
		registry:  registry,
		sessions:  sessions,
		publisher: publisher,
		serverKey: serverKey,
		log:       logger,
	}
}

// InboundData routes a payload to the connection's message listeners.
func (r *Router) InboundData(conn *core.Connection, payload json.RawMessage) error {
	return conn.Deliver(payload)
}

// InboundPresence parses a {"players": [...]} payload and applies it as
// the connection's new player set.
func (r *Router) InboundPresence(conn *core.Connection, payload []byte) error {
	ids, err := parsePresence(payload)
	if err != nil {
		return err
	}
	return conn.UpdatePresence(ids)
}

func parsePresence(payload []byte) ([]string, error) {
	players := gjson.GetBytes(payload, "players")
	if !players.Exists() || !players.IsArray() {
		return nil, fmt.Errorf("%w: missing players list", core.ErrBadRequest)
	}
	var ids []string
	for _, v := range players.Array() {
		ids = append(ids, v.String())
	}
	return ids, nil
}

// InboundClose raises the connection's close event, removes it from the
// registry and destroys its session binding.
func (r *Router) InboundClose(conn *core.Connection) error {
	if err := r.registry.Close(conn.JobID); err != nil {
		return err
	}
	r.sessions.Destroy(conn.SessionID)
	return nil
}

// Send publishes a payload on the data topic. Any top-level ApiKey field
// is stripped first; callers must never leak the bridge key inside a
// relayed payload.
func (r *Router) Send(ctx context.Context, payload json.RawMessage, opts SendOptions) error {
	payload, err := stripAPIKey(payload)
	if err != nil {
		return err
	}

	env := envelope{
		Data:          payload,
		ServerJobID:   opts.JobID,
		ServerPlaceID: opts.PlaceID,
	}
	msg, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	return r.publisher.Publish(ctx, push.TopicData, string(msg))
}

// SendTo implements core.Sender for Connection.Send.
func (r *Router) SendTo(ctx context.Context, data json.RawMessage, jobID, placeID string) error {
	return r.Send(ctx, data, SendOptions{JobID: jobID, PlaceID: placeID})
}

func stripAPIKey(payload json.RawMessage) (json.RawMessage, error) {
	if !gjson.GetBytes(payload, "ApiKey").Exists() {
		return payload, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("%w: invalid payload", core.ErrBadRequest)
	}
	delete(obj, "ApiKey")
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}

// BroadcastAPIKey pushes the bridge's server key to all remote servers.
// This is the sanctioned out-of-band distribution of the key game
// servers present on /connect; it bypasses Send's ApiKey stripping.
func (r *Router) BroadcastAPIKey(ctx context.Context) error {
	msg, err := json.Marshal(map[string]string{"ApiKey": r.serverKey})
	if err != nil {
		return fmt.Errorf("encode key message: %w", err)
	}
	return r.publisher.Publish(ctx, push.TopicData, string(msg))
}

var _ core.Sender = (*Router)(nil)
