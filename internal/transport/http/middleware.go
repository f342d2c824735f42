package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Request header names of the relay protocol.
const (
	HeaderAPIKey    = "API-Key"
	HeaderJobID     = "Roblox-JobId"
	HeaderPlaceID   = "Roblox-PlaceId"
	HeaderSignature = "X-Bridge-Signature"
	HeaderSession   = "X-Bridge-Session"
	HeaderDataType  = "Data-Type"
)

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
