package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-channel/internal/config"
	"github.com/vovakirdan/wirechat-channel/internal/core"
	"github.com/vovakirdan/wirechat-channel/internal/metrics"
)

// TokenVerifier checks that a token was issued to userID.
type TokenVerifier interface {
	Verify(token, userID string) error
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Hub      *core.Hub
	Verifier TokenVerifier
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zerolog.Logger
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds an HTTP server with the channel routes.
func NewServer(cfg *config.Config, deps Deps) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.CORSAllowOrigin))

	router.GET("/health", healthHandler)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	guard := newConnectGuard(cfg, deps.Verifier, logger)
	ws := NewWSHandler(deps.Hub, guard, cfg, deps.Metrics, logger)
	history := NewHistoryHandler(deps.Hub, guard, cfg.HistoryMaxLimit, logger)

	channels := router.Group("/channels/:channel")
	channels.GET("/ws", ws.Handle)
	channels.GET("/messages", history.List)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
