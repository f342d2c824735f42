package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/auth"
	"github.com/rtcomm/bridge-server/internal/config"
	"github.com/rtcomm/bridge-server/internal/core"
	"github.com/rtcomm/bridge-server/internal/log"
	"github.com/rtcomm/bridge-server/internal/player"
	"github.com/rtcomm/bridge-server/internal/push"
	"github.com/rtcomm/bridge-server/internal/relay"
	"github.com/rtcomm/bridge-server/internal/session"
	transporthttp "github.com/rtcomm/bridge-server/internal/transport/http"
)

// App wires together the bridge's core and transport layers. One App is
// one isolated bridge instance; nothing here is process-global.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration

	registry  *core.Registry
	sessions  *session.Store
	players   *player.Registry
	relayRt   *relay.Router
	publisher *push.OpenCloudClient
	log       *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	serverKey := cfg.ServerKey
	if serverKey == "" {
		key, err := generateServerKey()
		if err != nil {
			return nil, fmt.Errorf("generate server key: %w", err)
		}
		serverKey = key
		logger.Info().Msg("generated server key; distribute it via GET /apikey")
	}

	publisher := push.NewOpenCloudClient(cfg.UniverseID, cfg.OpenCloudKey, "", cfg.PushTimeout, log.Component(logger, "push"))
	profiles := player.NewUsersClient("", cfg.ProfileTimeout)
	players := player.NewRegistry(profiles, cfg.PlayerCacheTTL, log.Component(logger, "players"))
	registry := core.NewRegistry(players, log.Component(logger, "registry"))
	sessions := session.NewStore(cfg.SessionTTL)
	sessions.SetLiveness(func(assignedID string) bool {
		_, ok := registry.LookupByID(assignedID)
		return ok
	})

	tokens := &session.TokenConfig{
		Secret:   []byte(serverKey),
		Issuer:   "bridge-server",
		Audience: "game-servers",
		TTL:      cfg.SessionTTL,
	}

	router := relay.NewRouter(registry, sessions, publisher, serverKey, log.Component(logger, "relay"))
	registry.SetSender(router)

	authn := auth.New(serverKey, registry, sessions, tokens, log.Component(logger, "auth"))
	handlers := transporthttp.NewHandlers(registry, sessions, tokens, authn, router, log.Component(logger, "http"))
	server := transporthttp.NewServer(cfg, handlers, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		sessions:        sessions,
		players:         players,
		relayRt:         router,
		publisher:       publisher,
		log:             logger,
	}, nil
}

// Connections exposes the connection registry so an embedding
// application can subscribe and attach listeners.
func (a *App) Connections() *core.Registry {
	return a.registry
}

// Players exposes the player cache.
func (a *App) Players() *player.Registry {
	return a.players
}

// Relay exposes the outbound send path.
func (a *App) Relay() *relay.Router {
	return a.relayRt
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	// Fail fast on bad Open Cloud credentials before accepting traffic.
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := a.publisher.Probe(probeCtx)
	cancel()
	if err != nil {
		return err
	}

	go a.players.Run(ctx)
	go a.sessions.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

func generateServerKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
