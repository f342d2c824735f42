// Package auth validates inbound relay requests before any relay action
// is permitted: shared API key, per-connection HMAC body signature,
// declared identity, and session binding.
package auth

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/core"
	"github.com/rtcomm/bridge-server/internal/session"
)

// Outcome is the terminal result of authenticating a relay request.
type Outcome int

const (
	// Authorized means every check passed and relay may proceed.
	Authorized Outcome = iota
	// Unauthorized covers bad API key, bad signature, identity mismatch
	// and session mismatch. Causes are deliberately not distinguished so
	// responses leak nothing about which check failed.
	Unauthorized
	// NotFound means no connection exists for the assigned id.
	NotFound
	// BadRequest means the request is structurally invalid.
	BadRequest
)

// Request carries the relay request fields the authenticator inspects.
type Request struct {
	AssignedID   string
	APIKey       string
	Signature    string
	JobID        string
	PlaceID      string
	SessionToken string
	Body         []byte
}

// Authenticator runs the per-request check sequence against the
// connection registry and session binding store.
type Authenticator struct {
	serverKey string
	registry  *core.Registry
	sessions  *session.Store
	tokens    *session.TokenConfig
	log       *zerolog.Logger
}

// New builds an authenticator bound to one bridge instance's key
// material.
func New(serverKey string, registry *core.Registry, sessions *session.Store, tokens *session.TokenConfig, logger *zerolog.Logger) *Authenticator {
	return &Authenticator{
		serverKey: serverKey,
		registry:  registry,
		sessions:  sessions,
		tokens:    tokens,
		log:       logger,
	}
}

// VerifyAPIKey checks the shared bridge key in constant time.
func (a *Authenticator) VerifyAPIKey(key string) bool {
	return EqualKeys(key, a.serverKey)
}

// Authenticate runs the check sequence:
//
//  1. shared API key (constant time)
//  2. connection resolution by assigned id
//  3. HMAC body signature under the derived key, when a body is present
//  4. declared job/place identity against the connection and the binding
//  5. session binding's assigned id against the target connection
//
// On Authorized the matched connection and binding are returned.
func (a *Authenticator) Authenticate(req Request) (*core.Connection, *session.Binding, Outcome) {
	if !a.VerifyAPIKey(req.APIKey) {
		a.log.Debug().Str("assigned_id", req.AssignedID).Msg("relay request rejected")
		return nil, nil, Unauthorized
	}

	conn, ok := a.registry.LookupByID(strings.TrimSpace(req.AssignedID))
	if !ok {
		return nil, nil, NotFound
	}

	if len(req.Body) > 0 {
		key := DeriveKey(conn.Secret, conn.PlaceID, conn.JobID)
		if !VerifySignature(req.Body, key, req.Signature) {
			a.log.Debug().Str("assigned_id", conn.ID).Msg("relay request rejected")
			return nil, nil, Unauthorized
		}
	}

	binding, outcome := a.resolveBinding(req.SessionToken)
	if outcome != Authorized {
		return nil, nil, outcome
	}

	jobID := strings.TrimSpace(req.JobID)
	placeID := strings.TrimSpace(req.PlaceID)
	if jobID != conn.JobID || placeID != conn.PlaceID {
		a.log.Debug().Str("assigned_id", conn.ID).Msg("relay request rejected")
		return nil, nil, Unauthorized
	}
	if jobID != binding.JobID || placeID != binding.PlaceID {
		a.log.Debug().Str("assigned_id", conn.ID).Msg("relay request rejected")
		return nil, nil, Unauthorized
	}
	if binding.AssignedID != conn.ID {
		a.log.Debug().Str("assigned_id", conn.ID).Msg("relay request rejected")
		return nil, nil, Unauthorized
	}

	return conn, binding, Authorized
}

func (a *Authenticator) resolveBinding(token string) (*session.Binding, Outcome) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, Unauthorized
	}
	claims, err := session.ParseToken(a.tokens, token)
	if err != nil {
		return nil, Unauthorized
	}
	binding, err := a.sessions.Get(claims.SessionID)
	if err != nil {
		return nil, Unauthorized
	}
	return binding, Authorized
}
