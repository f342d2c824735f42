package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rtcomm/bridge-server/internal/config"
)

// NewServer builds the bridge's HTTP server.
func NewServer(cfg config.Config, h *Handlers, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(h, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires the bridge routes onto a gin engine.
func NewRouter(h *Handlers, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", healthHandler)
	r.POST("/connect", h.Connect)
	r.GET("/apikey", h.DistributeKey)

	servers := r.Group("/servers")
	servers.POST("/:serverId/data", h.Data)
	servers.POST("/:serverId/internalData", h.InternalData)
	servers.POST("/:serverId/close", h.Close)

	return r
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
