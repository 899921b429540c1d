package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-channel/internal/core"
	"github.com/vovakirdan/wirechat-channel/internal/proto"
)

// HistoryHandler serves persisted channel history.
type HistoryHandler struct {
	hub      *core.Hub
	guard    *connectGuard
	maxLimit int
	log      *zerolog.Logger
}

// NewHistoryHandler creates a new history handler. Requests asking for more
// than maxLimit messages are rejected; a non-positive maxLimit disables the check.
func NewHistoryHandler(hub *core.Hub, guard *connectGuard, maxLimit int, logger *zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{hub: hub, guard: guard, maxLimit: maxLimit, log: logger}
}

// List returns messages of a channel in ascending timestamp order.
// GET /channels/:channel/messages?limit=50&before=2024-01-01T00:00:00Z
func (h *HistoryHandler) List(c *gin.Context) {
	if h.guard.required {
		if _, ok := h.guard.authenticate(c); !ok {
			return
		}
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		if h.maxLimit > 0 && n > h.maxLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("limit exceeds %d", h.maxLimit)})
			return
		}
		limit = n
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		before = &ts
	}

	channel, err := h.hub.Channel(c.Param("channel"))
	if err != nil {
		h.log.Warn().Err(err).Str("channel", c.Param("channel")).Msg("channel unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "channel unavailable"})
		return
	}

	msgs, err := channel.History(c.Request.Context(), limit, before)
	if err != nil {
		var coreErr *core.CoreError
		if errors.As(err, &coreErr) && coreErr.Code == core.ErrCodeChannelUninitialized {
			c.JSON(http.StatusConflict, ErrorResponse{Error: coreErr.Message})
			return
		}
		h.log.Error().Err(err).Str("channel", channel.Key()).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, proto.HistoryResponse{Messages: core.WireMessages(msgs)})
}
