package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-channel/internal/config"
)

var errMissingUserID = errors.New("userId is required")

// connectGuard authenticates channel requests from query parameters.
type connectGuard struct {
	required bool
	verifier TokenVerifier
	log      *zerolog.Logger
}

func newConnectGuard(cfg *config.Config, verifier TokenVerifier, logger *zerolog.Logger) *connectGuard {
	return &connectGuard{
		required: cfg.AuthRequired,
		verifier: verifier,
		log:      logger,
	}
}

// authenticate returns the user ID of the request or writes a 401.
func (g *connectGuard) authenticate(c *gin.Context) (string, bool) {
	userID := c.Query("userId")
	if userID == "" {
		g.log.Debug().Msg("missing userId")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: errMissingUserID.Error()})
		return "", false
	}
	if !g.required {
		return userID, true
	}
	if g.verifier == nil {
		g.log.Error().Msg("auth is required but no verifier is configured")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}
	if err := g.verifier.Verify(c.Query("token"), userID); err != nil {
		g.log.Debug().Err(err).Str("user_id", userID).Msg("invalid token")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}
	return userID, true
}

// CORSMiddleware attaches CORS headers and answers preflight requests.
func CORSMiddleware(allowOrigin string) gin.HandlerFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

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
