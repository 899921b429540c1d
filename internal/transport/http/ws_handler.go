package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/wirechat-channel/internal/config"
	"github.com/vovakirdan/wirechat-channel/internal/core"
	"github.com/vovakirdan/wirechat-channel/internal/metrics"
	"github.com/vovakirdan/wirechat-channel/internal/proto"
)

// disconnecter is the part of core.Channel used on teardown.
type disconnecter interface {
	Disconnect(ctx context.Context, userID string, conn core.Conn) error
}

// WSHandler upgrades channel requests and bridges them to the channel actor.
type WSHandler struct {
	hub     *core.Hub
	guard   *connectGuard
	metrics *metrics.Metrics
	log     *zerolog.Logger

	sessionBuffer int
	writeTimeout  time.Duration
	maxFrameBytes int64
	ratePerSecond float64
	rateBurst     int
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, guard *connectGuard, cfg *config.Config, m *metrics.Metrics, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:           hub,
		guard:         guard,
		metrics:       m,
		log:           logger,
		sessionBuffer: cfg.SessionBuffer,
		writeTimeout:  cfg.WriteTimeout,
		maxFrameBytes: cfg.MaxFrameBytes,
		ratePerSecond: cfg.RateLimitPerSecond,
		rateBurst:     cfg.RateLimitBurst,
	}
}

// Handle serves GET /channels/:channel/ws.
func (h *WSHandler) Handle(c *gin.Context) {
	userID, ok := h.guard.authenticate(c)
	if !ok {
		return
	}
	channel, err := h.hub.Channel(c.Param("channel"))
	if err != nil {
		h.log.Warn().Err(err).Str("channel", c.Param("channel")).Msg("channel unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "channel unavailable"})
		return
	}
	member := core.Member{
		UserID:      userID,
		DisplayName: c.Query("username"),
		AvatarRef:   c.Query("profileImage"),
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.maxFrameBytes > 0 {
		conn.SetReadLimit(h.maxFrameBytes)
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sess := newWSSession(conn, h.sessionBuffer, h.writeTimeout, cancel)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- sess.writeLoop(ctx)
	}()

	previous, err := channel.Connect(ctx, member, sess)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("failed to join channel")
		h.leave(channel, userID, sess, writeErr)
		conn.Close(websocket.StatusTryAgainLater, "channel unavailable")
		return
	}
	if previous != nil {
		h.log.Debug().Str("user_id", userID).Msg("connection superseded an older session")
	}

	err = h.readLoop(ctx, channel, userID, conn, sess)
	h.leave(channel, userID, sess, writeErr)

	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
}

// leave unregisters sess and waits for its writer to stop. The disconnect is
// stale-guarded, so it is safe even if the connect never took effect.
func (h *WSHandler) leave(channel disconnecter, userID string, sess *wsSession, writeErr <-chan error) {
	// Use a fresh context: the request context may already be done.
	if err := channel.Disconnect(context.Background(), userID, sess); err != nil {
		h.log.Debug().Err(err).Str("user_id", userID).Msg("disconnect not delivered")
	}
	_ = sess.Close()
	<-writeErr
}

func (h *WSHandler) readLoop(ctx context.Context, channel *core.Channel, userID string, conn *websocket.Conn, sess *wsSession) error {
	limiter := newFrameLimiter(h.ratePerSecond, h.rateBurst)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if err := h.handleFrame(ctx, channel, userID, data, limiter, sess); err != nil {
			return err
		}
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, channel *core.Channel, userID string, data []byte, limiter *rate.Limiter, sess *wsSession) error {
	if !limiter.Allow() {
		h.metrics.FrameRejected("rate_limited")
		_ = sess.Send(errorFrame(core.RateLimitedError()))
		return nil
	}

	var inbound proto.Inbound
	if err := json.Unmarshal(data, &inbound); err != nil {
		h.log.Debug().Err(err).Str("user_id", userID).Msg("malformed frame")
		h.metrics.FrameRejected("invalid_format")
		_ = sess.Send(errorFrame(core.InvalidFormatError()))
		return nil
	}

	return channel.Submit(ctx, inboundToCommand(userID, inbound))
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return s, "closing"
	case websocket.StatusMessageTooBig:
		return s, "frame too large"
	}
	return websocket.StatusInternalError, "internal error"
}
