package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/auth"
	"github.com/rtcomm/bridge-server/internal/core"
	"github.com/rtcomm/bridge-server/internal/push"
	"github.com/rtcomm/bridge-server/internal/relay"
	"github.com/rtcomm/bridge-server/internal/session"
)

// Handlers provides the bridge's HTTP handlers.
type Handlers struct {
	registry *core.Registry
	sessions *session.Store
	tokens   *session.TokenConfig
	auth     *auth.Authenticator
	relay    *relay.Router
	log      *zerolog.Logger
}

// NewHandlers creates the handler set for one bridge instance.
func NewHandlers(registry *core.Registry, sessions *session.Store, tokens *session.TokenConfig, authn *auth.Authenticator, router *relay.Router, logger *zerolog.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		sessions: sessions,
		tokens:   tokens,
		auth:     authn,
		relay:    router,
		log:      logger,
	}
}

// ConnectResponse is the registration response body. The secret is
// transmitted here and never again.
type ConnectResponse struct {
	Secret string `json:"secret"`
	ID     string `json:"id"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Connect registers a remote game server.
// POST /connect
func (h *Handlers) Connect(c *gin.Context) {
	if !h.auth.VerifyAPIKey(c.GetHeader(HeaderAPIKey)) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	jobID := strings.TrimSpace(c.GetHeader(HeaderJobID))
	placeID := strings.TrimSpace(c.GetHeader(HeaderPlaceID))
	if jobID == "" || placeID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing identity headers"})
		return
	}

	sessionID := session.NewSessionID()
	conn, err := h.registry.Register(jobID, placeID, sessionID, nil)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: "server already has an active connection",
				Code:  core.ErrCodeAlreadyConnected,
			})
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to register connection")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// The binding exists only after a successful registration.
	h.sessions.Bind(sessionID, jobID, placeID, conn.ID)

	token, err := session.IssueToken(h.tokens, sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("failed to issue session token")
		_ = h.registry.Close(jobID)
		h.sessions.Destroy(sessionID)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Header(HeaderSession, token)
	c.JSON(http.StatusOK, ConnectResponse{Secret: conn.Secret, ID: conn.ID})
}

// Data relays an arbitrary JSON payload to the connection's message
// stream.
// POST /servers/:serverId/data
func (h *Handlers) Data(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body required"})
		return
	}

	conn, ok := h.authenticate(c, body)
	if !ok {
		return
	}

	if err := h.relay.InboundData(conn, body); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// InternalData applies a presence update from the remote server.
// POST /servers/:serverId/internalData
func (h *Handlers) InternalData(c *gin.Context) {
	if strings.TrimSpace(c.GetHeader(HeaderDataType)) != "internal" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing internal data-type header"})
		return
	}

	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body required"})
		return
	}

	conn, ok := h.authenticate(c, body)
	if !ok {
		return
	}

	if err := h.relay.InboundPresence(conn, body); err != nil {
		if errors.Is(err, core.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid presence payload"})
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Close tears down a connection and its session binding.
// POST /servers/:serverId/close
func (h *Handlers) Close(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	conn, ok := h.authenticate(c, body)
	if !ok {
		return
	}

	if err := h.relay.InboundClose(conn); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DistributeKey pushes the bridge's server key to all remote servers
// over the push channel.
// GET /apikey
func (h *Handlers) DistributeKey(c *gin.Context) {
	if !h.auth.VerifyAPIKey(c.GetHeader(HeaderAPIKey)) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.relay.BroadcastAPIKey(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("failed to distribute server key")
		if errors.Is(err, push.ErrUnauthorized) {
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "messaging service rejected credentials"})
			return
		}
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "messaging service unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// authenticate runs the request authenticator and writes the mapped
// error response on failure. Auth failure bodies carry no detail about
// which check failed.
func (h *Handlers) authenticate(c *gin.Context, body []byte) (*core.Connection, bool) {
	req := auth.Request{
		AssignedID:   c.Param("serverId"),
		APIKey:       c.GetHeader(HeaderAPIKey),
		Signature:    c.GetHeader(HeaderSignature),
		JobID:        c.GetHeader(HeaderJobID),
		PlaceID:      c.GetHeader(HeaderPlaceID),
		SessionToken: c.GetHeader(HeaderSession),
		Body:         body,
	}

	conn, _, outcome := h.auth.Authenticate(req)
	switch outcome {
	case auth.Authorized:
		return conn, true
	case auth.NotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "connection not found"})
	case auth.BadRequest:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad request"})
	default:
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	return nil, false
}
